package client

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"

	"github.com/maumercado/taskboard-go/internal/board"
	"github.com/maumercado/taskboard-go/internal/logger"
	"github.com/maumercado/taskboard-go/internal/metrics"
)

// Record types and statuses re-exported for callers outside this module.
type (
	Sprint = board.Sprint
	Task   = board.Task
	User   = board.User
	Status = board.Status
	Date   = board.Date
	Links  = board.Links
)

const (
	StatusTodo    = board.StatusTodo
	StatusActive  = board.StatusActive
	StatusTesting = board.StatusTesting
	StatusDone    = board.StatusDone
)

// SprintID builds the nullable sprint reference MoveTo takes.
func SprintID(id int64) *int64 {
	return board.SprintID(id)
}

// Sprints is the sprint repository.
type Sprints struct {
	*Repository[board.Sprint]
}

// TasksURL returns the sprint's task list link.
func (s *Sprints) TasksURL(sprint board.Sprint) (string, error) {
	link := sprint.Links.Tasks()
	if link == "" {
		return "", fmt.Errorf("%w: sprint %s has no tasks link", ErrNoLink, board.SprintKey(sprint))
	}
	return link, nil
}

// FetchTasks loads the tasks of sprint into the task cache. A sprint without
// a tasks link yields nothing.
func (s *Sprints) FetchTasks(ctx context.Context, sprint board.Sprint) ([]board.Task, error) {
	link, err := s.TasksURL(sprint)
	if errors.Is(err, ErrNoLink) {
		return []board.Task{}, nil
	}
	return s.client.Tasks.Fetch(ctx, FetchOptions{URL: link})
}

// Ending loads every sprint whose end date falls within [from, to] into the
// cache. A zero bound is left open.
func (s *Sprints) Ending(ctx context.Context, from, to board.Date, pageSize int) ([]board.Sprint, error) {
	query := url.Values{}
	if !from.IsZero() {
		query.Set("end_min", from.String())
	}
	if !to.IsZero() {
		query.Set("end_max", to.String())
	}
	setPageSize(query, pageSize)
	return s.FetchAll(ctx, FetchOptions{Query: query})
}

// TaskFilter narrows a task list request. Zero fields are not sent.
type TaskFilter struct {
	Sprint   *int64
	Backlog  bool
	Status   board.Status
	Assigned string
	PageSize int
}

// Query encodes the filter as list query parameters.
func (f TaskFilter) Query() url.Values {
	query := url.Values{}
	if f.Sprint != nil {
		query.Set("sprint", strconv.FormatInt(*f.Sprint, 10))
	}
	if f.Backlog {
		query.Set("backlog", "True")
	}
	if f.Status.Valid() {
		query.Set("status", strconv.Itoa(int(f.Status)))
	}
	if f.Assigned != "" {
		query.Set("assigned", f.Assigned)
	}
	setPageSize(query, f.PageSize)
	return query
}

func setPageSize(query url.Values, size int) {
	if size > 0 {
		query.Set("page_size", strconv.Itoa(size))
	}
}

// Tasks is the task repository.
type Tasks struct {
	*Repository[board.Task]
}

// GetBacklog loads the tasks that belong to no sprint, merging them into the
// cache.
func (t *Tasks) GetBacklog(ctx context.Context) ([]board.Task, error) {
	return t.Fetch(ctx, FetchOptions{Query: url.Values{"backlog": {"True"}}})
}

// Search loads every task matching filter into the cache.
func (t *Tasks) Search(ctx context.Context, filter TaskFilter) ([]board.Task, error) {
	return t.FetchAll(ctx, FetchOptions{Query: filter.Query()})
}

// ForSprintStatus loads the tasks of sprint in one board column.
func (t *Tasks) ForSprintStatus(ctx context.Context, sprint int64, status board.Status) ([]board.Task, error) {
	return t.Search(ctx, TaskFilter{Sprint: &sprint, Status: status})
}

// AssignedTo loads the tasks assigned to username.
func (t *Tasks) AssignedTo(ctx context.Context, username string) ([]board.Task, error) {
	return t.Search(ctx, TaskFilter{Assigned: username})
}

// Backlog returns the cached tasks that belong to no sprint.
func (t *Tasks) Backlog() []board.Task {
	return t.Filter(board.Task.InBacklog)
}

// ForSprint returns the cached tasks of sprint ordered as cached.
func (t *Tasks) ForSprint(sprint board.Sprint) []board.Task {
	return t.Filter(func(task board.Task) bool { return task.InSprint(sprint) })
}

// MoveTo moves task to status within sprint (nil for the backlog) at order.
// It returns false without sending anything when the move is not allowed,
// such as a done task going back to the backlog. Otherwise the merged record
// is saved with one PUT and the server's version replaces the cached one.
func (t *Tasks) MoveTo(ctx context.Context, task board.Task, status board.Status, sprint *int64, order int) (bool, error) {
	update, ok := task.MoveTo(status, sprint, order)
	if !ok {
		metrics.RecordTaskMove(status.String(), "rejected")
		log := logger.WithModel(t.model, board.TaskKey(task))
		log.Debug().
			Str("from", task.Status.String()).
			Str("to", status.String()).
			Msg("move rejected")
		return false, nil
	}

	if _, err := t.Save(ctx, task.Apply(update)); err != nil {
		metrics.RecordTaskMove(update.Status.String(), "failed")
		return true, err
	}
	metrics.RecordTaskMove(update.Status.String(), "saved")
	return true, nil
}

// Users is the user repository, keyed by username.
type Users struct {
	*Repository[board.User]
}
