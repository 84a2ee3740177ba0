package board

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	today     = Date{Year: 2024, Month: time.March, Day: 15}
	lastWeek  = Date{Year: 2024, Month: time.March, Day: 8}
	yesterday = Date{Year: 2024, Month: time.March, Day: 14}
)

func datePtr(d Date) *Date {
	return &d
}

func TestPlanMove_DoneTaskCannotReturnToBacklog(t *testing.T) {
	task := Task{
		ID:        1,
		Sprint:    SprintID(3),
		Status:    StatusDone,
		Started:   datePtr(lastWeek),
		Completed: datePtr(yesterday),
	}
	before := task

	u, ok := task.PlanMove(StatusTodo, nil, 0, today)

	assert.False(t, ok)
	assert.Equal(t, Update{}, u)
	assert.Equal(t, before, task)
}

func TestPlanMove_BacklogForcesTodoAndClearsStarted(t *testing.T) {
	task := Task{
		ID:      1,
		Sprint:  SprintID(3),
		Status:  StatusActive,
		Started: datePtr(lastWeek),
	}

	u, ok := task.PlanMove(StatusTodo, nil, 4, today)
	require.True(t, ok)

	assert.Equal(t, StatusTodo, u.Status)
	assert.Nil(t, u.Sprint)
	assert.Equal(t, 4, u.Order)
	assert.Equal(t, DateChange{Changed: true}, u.Started)
	assert.False(t, u.Completed.Changed)

	// Any requested status is overridden in the backlog
	u, ok = task.PlanMove(StatusTesting, nil, 0, today)
	require.True(t, ok)
	assert.Equal(t, StatusTodo, u.Status)
}

func TestPlanMove_ZeroSprintIsBacklog(t *testing.T) {
	task := Task{ID: 1, Sprint: SprintID(3), Status: StatusDone}

	_, ok := task.PlanMove(StatusTodo, SprintID(0), 0, today)
	assert.False(t, ok)
}

func TestPlanMove_ActiveSetsStarted(t *testing.T) {
	task := Task{ID: 1, Sprint: SprintID(3), Status: StatusTodo}

	u, ok := task.PlanMove(StatusActive, SprintID(3), 2, today)
	require.True(t, ok)

	assert.Equal(t, StatusActive, u.Status)
	assert.Equal(t, int64(3), *u.Sprint)
	require.True(t, u.Started.Changed)
	assert.Equal(t, today, *u.Started.Value)
	assert.False(t, u.Completed.Changed)
}

func TestPlanMove_DoneToActive(t *testing.T) {
	task := Task{
		ID:        1,
		Sprint:    SprintID(3),
		Status:    StatusDone,
		Started:   datePtr(lastWeek),
		Completed: datePtr(yesterday),
	}

	u, ok := task.PlanMove(StatusActive, SprintID(3), 0, today)
	require.True(t, ok)

	// Moving into the active column always restamps started
	require.True(t, u.Started.Changed)
	assert.Equal(t, today, *u.Started.Value)
	assert.Equal(t, DateChange{Changed: true}, u.Completed)

	moved := task.Apply(u)
	assert.Equal(t, today, *moved.Started)
	assert.Nil(t, moved.Completed)
}

func TestPlanMove_TestingKeepsExistingStarted(t *testing.T) {
	task := Task{ID: 1, Sprint: SprintID(3), Status: StatusActive, Started: datePtr(lastWeek)}

	u, ok := task.PlanMove(StatusTesting, SprintID(3), 0, today)
	require.True(t, ok)

	assert.False(t, u.Started.Changed)
	assert.Equal(t, lastWeek, *task.Apply(u).Started)
}

func TestPlanMove_SkippingActiveStillStarts(t *testing.T) {
	task := Task{ID: 1, Sprint: SprintID(3), Status: StatusTodo}

	u, ok := task.PlanMove(StatusDone, SprintID(3), 0, today)
	require.True(t, ok)

	moved := task.Apply(u)
	assert.Equal(t, today, *moved.Started)
	assert.Equal(t, today, *moved.Completed)
}

func TestPlanMove_InvariantsHold(t *testing.T) {
	starts := []Task{
		{ID: 1, Status: StatusTodo},
		{ID: 2, Sprint: SprintID(1), Status: StatusActive, Started: datePtr(lastWeek)},
		{ID: 3, Sprint: SprintID(1), Status: StatusTesting, Started: datePtr(lastWeek)},
		{ID: 4, Sprint: SprintID(1), Status: StatusDone, Started: datePtr(lastWeek), Completed: datePtr(yesterday)},
	}
	sprints := []*int64{nil, SprintID(1), SprintID(2)}

	for _, start := range starts {
		for _, sprint := range sprints {
			for status := StatusTodo; status <= StatusDone; status++ {
				u, ok := start.PlanMove(status, sprint, 0, today)
				if !ok {
					assert.Equal(t, StatusDone, start.Status)
					assert.Nil(t, sprint)
					continue
				}
				moved := start.Apply(u)
				assert.Equal(t, moved.Status >= StatusActive, moved.Started != nil,
					"started invariant: task %d -> %s", start.ID, status)
				assert.Equal(t, moved.Status == StatusDone, moved.Completed != nil,
					"completed invariant: task %d -> %s", start.ID, status)
				if sprint == nil {
					assert.Equal(t, StatusTodo, moved.Status)
					assert.True(t, moved.InBacklog())
				}
			}
		}
	}
}

func TestPlanMove_InvalidStatus(t *testing.T) {
	task := Task{ID: 1, Sprint: SprintID(3), Status: StatusTodo}

	_, ok := task.PlanMove(Status(9), SprintID(3), 0, today)
	assert.False(t, ok)
}

func TestMoveTo_UsesToday(t *testing.T) {
	task := Task{ID: 1, Sprint: SprintID(3), Status: StatusTodo}

	u, ok := task.MoveTo(StatusActive, SprintID(3), 0)
	require.True(t, ok)
	assert.Equal(t, DateOf(time.Now()), *u.Started.Value)
}

func TestApply_LeavesUntouchedDates(t *testing.T) {
	task := Task{ID: 1, Status: StatusTesting, Started: datePtr(lastWeek), Due: datePtr(today)}

	moved := task.Apply(Update{Status: StatusTesting, Sprint: SprintID(2), Order: 5})

	assert.Equal(t, lastWeek, *moved.Started)
	assert.Equal(t, today, *moved.Due)
	assert.Equal(t, 5, moved.Order)
	assert.Equal(t, int64(2), *moved.Sprint)
	// Original is a value and stays untouched
	assert.Nil(t, task.Sprint)
}
