package run

import (
	"context"
	"encoding/json"
	"sort"
	"strings"

	"github.com/metalagman/devflow/internal/agents/roles"
	"github.com/metalagman/devflow/internal/db"
	"github.com/metalagman/devflow/internal/logging"
	"github.com/rs/zerolog"
	"google.golang.org/adk/session"
)

const maxJournalText = 2048

type journal struct {
	ctx   context.Context
	store *db.Store
	runID string
	log   zerolog.Logger
}

func newJournal(ctx context.Context, store *db.Store, runID string) *journal {
	return &journal{
		ctx:   ctx,
		store: store,
		runID: runID,
		log:   logging.Component("journal").With().Str("run_id", runID).Logger(),
	}
}

type eventData struct {
	Author         string   `json:"author"`
	Escalate       bool     `json:"escalate,omitempty"`
	ReviewControl  string   `json:"review_control,omitempty"`
	StateDeltaKeys []string `json:"state_delta_keys,omitempty"`
	Text           string   `json:"text,omitempty"`
}

// Record journals one ADK event. Failures are logged and never stop the run.
func (j *journal) Record(ev *session.Event) {
	data := eventData{
		Author:         ev.Author,
		Escalate:       ev.Actions.Escalate,
		ReviewControl:  reviewControl(ev.Actions.StateDelta),
		StateDeltaKeys: deltaKeys(ev.Actions.StateDelta),
		Text:           eventText(ev),
	}
	raw, err := json.Marshal(data)
	if err != nil {
		j.log.Warn().Err(err).Msg("marshal journal event")
		return
	}
	j.log.Debug().
		Str("author", data.Author).
		Bool("escalate", data.Escalate).
		Str("review_control", data.ReviewControl).
		Strs("state_delta", data.StateDeltaKeys).
		Msg("workflow event")

	if err := j.store.AppendEvent(j.ctx, j.runID, db.Event{
		Type:     "adk_event",
		Message:  data.Author,
		DataJSON: string(raw),
	}); err != nil {
		j.log.Warn().Err(err).Msg("journal event")
	}
}

func reviewControl(delta map[string]any) string {
	v, _ := delta[roles.KeyReviewControl].(string)
	return v
}

func deltaKeys(delta map[string]any) []string {
	if len(delta) == 0 {
		return nil
	}
	keys := make([]string, 0, len(delta))
	for k := range delta {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func eventText(ev *session.Event) string {
	if ev.Content == nil {
		return ""
	}
	var b strings.Builder
	for _, part := range ev.Content.Parts {
		if part == nil || part.Text == "" {
			continue
		}
		b.WriteString(part.Text)
	}
	text := b.String()
	if len(text) > maxJournalText {
		text = text[:maxJournalText]
	}
	return text
}
