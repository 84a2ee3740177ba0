package events

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTopic(t *testing.T) {
	assert.Equal(t, "task:update", Topic("task", ActionUpdate))
	assert.Equal(t, "sprint:add", Topic("sprint", ActionAdd))
}

func TestParseFrame_ModelAction(t *testing.T) {
	raw := []byte(`{"model":"task","action":"update","id":7}`)

	evs, err := ParseFrame(raw)
	require.NoError(t, err)
	require.Len(t, evs, 2)

	assert.Equal(t, EventMessage, evs[0].Name)
	assert.Equal(t, "task:update", evs[1].Name)
	for _, ev := range evs {
		assert.Equal(t, "7", ev.ID)
		assert.Equal(t, "task", ev.Model)
		assert.Equal(t, "update", ev.Action)
		assert.Equal(t, raw, ev.Raw)
		assert.Equal(t, "task", ev.Payload["model"])
	}
}

func TestParseFrame_PlainMessage(t *testing.T) {
	evs, err := ParseFrame([]byte(`{"model":"task","text":"hello"}`))
	require.NoError(t, err)
	require.Len(t, evs, 1)
	assert.Equal(t, EventMessage, evs[0].Name)
	assert.Empty(t, evs[0].ID)
}

func TestParseFrame_StringID(t *testing.T) {
	evs, err := ParseFrame([]byte(`{"model":"user","action":"update","id":"alice"}`))
	require.NoError(t, err)
	require.Len(t, evs, 2)
	assert.Equal(t, "alice", evs[1].ID)
}

func TestParseFrame_Malformed(t *testing.T) {
	for _, raw := range []string{
		"ping",
		"",
		`{"model":`,
		`{"model":"task","action":"update","id":7}trailing`,
		`{"model":"task"}}`,
		`[1,2] [3]`,
	} {
		evs, err := ParseFrame([]byte(raw))
		assert.ErrorIs(t, err, ErrMalformedFrame, raw)
		assert.Empty(t, evs, raw)
	}
}

func TestParseFrame_NonObjectValues(t *testing.T) {
	tests := []struct {
		raw  string
		want interface{}
	}{
		{`[1,2]`, []interface{}{json.Number("1"), json.Number("2")}},
		{`"ping"`, "ping"},
		{`42`, json.Number("42")},
		{`null`, nil},
		{` true `, true},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			evs, err := ParseFrame([]byte(tt.raw))
			require.NoError(t, err)
			require.Len(t, evs, 1)

			ev := evs[0]
			assert.Equal(t, EventMessage, ev.Name)
			assert.Equal(t, tt.want, ev.Data)
			assert.Nil(t, ev.Payload)
			assert.Empty(t, ev.Model)
			assert.Empty(t, ev.ID)
		})
	}
}

func TestParseFrame_ObjectData(t *testing.T) {
	evs, err := ParseFrame([]byte(`{"chat":"hi"}`))
	require.NoError(t, err)
	require.Len(t, evs, 1)
	assert.Equal(t, map[string]interface{}{"chat": "hi"}, evs[0].Data)
	assert.Equal(t, "hi", evs[0].Payload["chat"])
}

func TestEmitter_OrderAndRouting(t *testing.T) {
	e := NewEmitter()
	var got []string

	e.On("task:update", func(ev Event) { got = append(got, "first:"+ev.ID) })
	e.On("task:update", func(ev Event) { got = append(got, "second:"+ev.ID) })
	e.On("task:remove", func(ev Event) { got = append(got, "remove") })
	e.On(AllEvents, func(ev Event) { got = append(got, "all:"+ev.Name) })

	e.Emit(Event{Name: "task:update", ID: "7"})

	assert.Equal(t, []string{"first:7", "second:7", "all:task:update"}, got)
}

func TestEmitter_Off(t *testing.T) {
	e := NewEmitter()
	calls := 0

	off := e.On(EventClosed, func(Event) { calls++ })
	e.Emit(Event{Name: EventClosed})
	off()
	off()
	e.Emit(Event{Name: EventClosed})

	assert.Equal(t, 1, calls)
	assert.Equal(t, 0, e.Listeners(EventClosed))
}

func TestEmitter_Once(t *testing.T) {
	e := NewEmitter()
	calls := 0

	e.Once(EventOpen, func(Event) { calls++ })
	e.Emit(Event{Name: EventOpen})
	e.Emit(Event{Name: EventOpen})

	assert.Equal(t, 1, calls)
}

func TestEmitter_HandlerCanSubscribe(t *testing.T) {
	e := NewEmitter()
	nested := 0

	e.On(EventMessage, func(Event) {
		e.On(EventMessage, func(Event) { nested++ })
	})

	e.Emit(Event{Name: EventMessage})
	assert.Equal(t, 0, nested)
	assert.Equal(t, 2, e.Listeners(EventMessage))
}
