package board

import (
	"strconv"
)

// Links are the hypermedia references the API embeds in every record.
// Clients follow them instead of building URLs.
type Links map[string]string

func (l Links) Self() string {
	return l["self"]
}

func (l Links) Tasks() string {
	return l["tasks"]
}

// Sprint is a time-boxed work period containing tasks.
type Sprint struct {
	ID          int64  `json:"id,omitempty"`
	Name        string `json:"name"`
	Description string `json:"description"`
	End         *Date  `json:"end"`
	Links       Links  `json:"links,omitempty"`
}

func (s Sprint) String() string {
	if s.Name != "" {
		return s.Name
	}
	if s.End != nil {
		return "Sprint ending " + s.End.String()
	}
	return "Sprint " + SprintKey(s)
}

// Task is a unit of work, either in a sprint or in the backlog.
type Task struct {
	ID          int64   `json:"id,omitempty"`
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Sprint      *int64  `json:"sprint"`
	Status      Status  `json:"status"`
	Order       int     `json:"order"`
	Assigned    *string `json:"assigned"`
	Started     *Date   `json:"started"`
	Due         *Date   `json:"due"`
	Completed   *Date   `json:"completed"`
	Links       Links   `json:"links,omitempty"`
}

// StatusClass names the board column used to render the task.
func (t Task) StatusClass() string {
	if t.InBacklog() {
		return "unassigned"
	}
	if !t.Status.Valid() {
		return Status(0).String()
	}
	return t.Status.String()
}

// InBacklog reports whether the task belongs to no sprint.
func (t Task) InBacklog() bool {
	return t.Sprint == nil || *t.Sprint == 0
}

func (t Task) InSprint(s Sprint) bool {
	return t.Sprint != nil && *t.Sprint == s.ID
}

// User is keyed by username rather than a numeric id.
type User struct {
	Username string `json:"username"`
	FullName string `json:"full_name"`
	ID       int64  `json:"id,omitempty"`
	Links    Links  `json:"links,omitempty"`
}

// SprintKey, TaskKey and UserKey extract the collection key of a record.
func SprintKey(s Sprint) string {
	return strconv.FormatInt(s.ID, 10)
}

func TaskKey(t Task) string {
	return strconv.FormatInt(t.ID, 10)
}

func UserKey(u User) string {
	return u.Username
}

// SprintLinks, TaskLinks and UserLinks return a record's hyperlinks.
func SprintLinks(s Sprint) Links {
	return s.Links
}

func TaskLinks(t Task) Links {
	return t.Links
}

func UserLinks(u User) Links {
	return u.Links
}

// SprintID is a convenience for building the nullable sprint reference.
func SprintID(id int64) *int64 {
	return &id
}
