package app

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/maumercado/taskboard-go/internal/events"
	"github.com/maumercado/taskboard-go/internal/logger"
	"github.com/maumercado/taskboard-go/pkg/client"
)

const refreshTimeout = 30 * time.Second

// Mirror applies socket push notifications to the client's collections.
// add and update frames carrying a full record (one with links) are stored
// as is; bare notifications trigger a refresh from the API. remove drops the
// record. Writes are last-write-wins against concurrent REST responses.
type Mirror struct {
	client *client.Client
	log    zerolog.Logger

	mu   sync.Mutex
	offs []func()
	wg   sync.WaitGroup
}

func NewMirror(c *client.Client) *Mirror {
	return &Mirror{
		client: c,
		log:    logger.WithComponent("mirror"),
	}
}

// Install subscribes to the model events of em. Installing twice replaces
// the earlier subscriptions.
func (m *Mirror) Install(em *events.Emitter) {
	m.Remove()

	var offs []func()
	offs = append(offs, subscribe(m, em, m.client.Sprints.Repository)...)
	offs = append(offs, subscribe(m, em, m.client.Tasks.Repository)...)
	offs = append(offs, subscribe(m, em, m.client.Users.Repository)...)

	m.mu.Lock()
	m.offs = offs
	m.mu.Unlock()
}

// Remove drops every subscription made by Install.
func (m *Mirror) Remove() {
	m.mu.Lock()
	offs := m.offs
	m.offs = nil
	m.mu.Unlock()

	for _, off := range offs {
		off()
	}
}

// Wait blocks until background refreshes have finished.
func (m *Mirror) Wait() {
	m.wg.Wait()
}

func subscribe[T any](m *Mirror, em *events.Emitter, repo *client.Repository[T]) []func() {
	model := repo.Model()
	upsert := func(ev events.Event) { applyUpsert(m, repo, ev) }

	return []func(){
		em.On(events.Topic(model, events.ActionAdd), upsert),
		em.On(events.Topic(model, events.ActionUpdate), upsert),
		em.On(events.Topic(model, events.ActionRemove), func(ev events.Event) {
			if ev.ID == "" {
				return
			}
			repo.Remove(ev.ID)
			log := logger.WithModel(model, ev.ID)
			log.Debug().Msg("removed by push")
		}),
	}
}

func applyUpsert[T any](m *Mirror, repo *client.Repository[T], ev events.Event) {
	model := repo.Model()

	if _, full := ev.Payload["links"]; full {
		item, err := decodeRecord[T](ev.Payload)
		if err == nil {
			repo.Set(item)
			return
		}
		m.log.Warn().Err(err).Str("model", model).Str("id", ev.ID).Msg("undecodable record, refreshing")
	}
	if ev.ID == "" {
		return
	}

	// Refresh off the socket's reader so later frames are not held up
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), refreshTimeout)
		defer cancel()

		if _, err := repo.Refresh(ctx, ev.ID); err != nil {
			if client.IsNotFound(err) {
				repo.Remove(ev.ID)
				return
			}
			log := logger.WithModel(model, ev.ID)
			log.Warn().Err(err).Msg("refresh after push failed")
		}
	}()
}

// decodeRecord decodes the record carried in a push frame. The envelope keys
// model and action are never record fields. The envelope id is the
// collection key, which is the record's own id for most models but the
// username for users, so it is kept only when the record type accepts it.
func decodeRecord[T any](payload map[string]interface{}) (T, error) {
	fields := make(map[string]interface{}, len(payload))
	for k, v := range payload {
		if k == "model" || k == "action" {
			continue
		}
		fields[k] = v
	}

	item, err := unmarshalFields[T](fields)
	if err == nil {
		return item, nil
	}
	if _, ok := fields["id"]; !ok {
		return item, err
	}
	delete(fields, "id")
	return unmarshalFields[T](fields)
}

func unmarshalFields[T any](fields map[string]interface{}) (T, error) {
	var item T
	b, err := json.Marshal(fields)
	if err != nil {
		return item, err
	}
	err = json.Unmarshal(b, &item)
	return item, err
}
