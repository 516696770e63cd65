package jobs

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/hibiken/asynq"
)

// UniqueWindow suppresses duplicate integrity runs enqueued close together.
const UniqueWindow = time.Minute

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskGLIntegrity runs the ledger integrity checks.
	TaskGLIntegrity = "gl:integrity"
)

// GLIntegrityPayload describes why an integrity run was requested.
type GLIntegrityPayload struct {
	Trigger string `json:"trigger"`
}

// NewGLIntegrityTask constructs an Asynq task. An empty trigger is recorded as "manual".
func NewGLIntegrityTask(trigger string) (*asynq.Task, error) {
	trigger = strings.TrimSpace(trigger)
	if trigger == "" {
		trigger = "manual"
	}
	data, err := json.Marshal(GLIntegrityPayload{Trigger: trigger})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskGLIntegrity, data), nil
}
