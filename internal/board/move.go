package board

// DateChange is an optional assignment to a nullable date field.
// When Changed is false the field is left as it is; a nil Value clears it.
type DateChange struct {
	Changed bool
	Value   *Date
}

func setDate(d Date) DateChange {
	return DateChange{Changed: true, Value: &d}
}

func clearDate() DateChange {
	return DateChange{Changed: true}
}

// Update is the set of fields a board move writes in one request.
type Update struct {
	Status    Status
	Sprint    *int64
	Order     int
	Started   DateChange
	Completed DateChange
}

// MoveTo plans moving the task to a column, sprint and position using
// today's UTC date. See PlanMove.
func (t Task) MoveTo(status Status, sprint *int64, order int) (Update, bool) {
	return t.PlanMove(status, sprint, order, Today())
}

// PlanMove computes the update that moves the task to status within sprint
// at order. A nil sprint means the backlog, where every task is todo. Done
// tasks cannot go back to the backlog; in that case (and for an unknown
// status) ok is false and nothing should be sent.
//
// started is kept iff the resulting status is at least active, completed iff
// it is done. Moving into active always stamps started with today. The two
// dates are handled independently, so done→active both drops completed and
// restamps started.
func (t Task) PlanMove(status Status, sprint *int64, order int, today Date) (u Update, ok bool) {
	u = Update{Status: status, Sprint: sprint, Order: order}

	if sprint == nil || *sprint == 0 {
		if t.Status == StatusDone {
			return Update{}, false
		}
		u.Sprint = nil
		u.Status = StatusTodo
	}
	if !u.Status.Valid() {
		return Update{}, false
	}

	switch {
	case u.Status == StatusActive, u.Status > StatusActive && t.Started == nil:
		u.Started = setDate(today)
	case u.Status < StatusActive && t.Started != nil:
		u.Started = clearDate()
	}

	switch {
	case u.Status == StatusDone:
		u.Completed = setDate(today)
	case u.Status < StatusDone && t.Completed != nil:
		u.Completed = clearDate()
	}

	return u, true
}

// Apply returns a copy of t with u merged in.
func (t Task) Apply(u Update) Task {
	t.Status = u.Status
	t.Sprint = u.Sprint
	t.Order = u.Order
	if u.Started.Changed {
		t.Started = u.Started.Value
	}
	if u.Completed.Changed {
		t.Completed = u.Completed.Value
	}
	return t
}
