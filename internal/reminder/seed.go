package reminder

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/dukerupert/prota/internal/model"
	"github.com/dukerupert/prota/internal/store"
)

// seedEntry accepts both the current field names and the legacy
// missoes.json ones (nome, horario, dias, assunto, mensagem). JSON files
// parse as YAML too.
type seedEntry struct {
	Name      string `yaml:"name"`
	Nome      string `yaml:"nome"`
	Subject   string `yaml:"subject"`
	Assunto   string `yaml:"assunto"`
	Message   string `yaml:"message"`
	Mensagem  string `yaml:"mensagem"`
	Time      string `yaml:"time"`
	Horario   string `yaml:"horario"`
	Weekdays  []int  `yaml:"weekdays"`
	Dias      []int  `yaml:"dias"`
	Recipient string `yaml:"recipient"`
	Active    *bool  `yaml:"active"`
}

func (e seedEntry) reminder() model.Reminder {
	r := model.Reminder{
		Name:      pick(e.Name, e.Nome),
		Subject:   pick(e.Subject, e.Assunto),
		Message:   pick(e.Message, e.Mensagem),
		TimeOfDay: pick(e.Time, e.Horario),
		Weekdays:  e.Weekdays,
		Recipient: e.Recipient,
		Active:    true,
	}
	if len(r.Weekdays) == 0 {
		r.Weekdays = e.Dias
	}
	if e.Active != nil {
		r.Active = *e.Active
	}
	return r
}

func pick(a, b string) string {
	if a != "" {
		return a
	}
	return b
}

// ParseSeed decodes a list of reminders.
func ParseSeed(data []byte) ([]model.Reminder, error) {
	var entries []seedEntry
	if err := yaml.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("decode reminder seed: %w", err)
	}

	out := make([]model.Reminder, 0, len(entries))
	for i, e := range entries {
		r := e.reminder()
		if err := Validate(&r); err != nil {
			return nil, fmt.Errorf("reminder %d: %w", i, err)
		}
		out = append(out, r)
	}
	return out, nil
}

// LoadSeedFile upserts every reminder in the file by name and returns how
// many were loaded.
func LoadSeedFile(path string, reminders *store.ReminderStore) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("read reminder seed: %w", err)
	}
	entries, err := ParseSeed(data)
	if err != nil {
		return 0, err
	}
	for _, r := range entries {
		if _, err := reminders.UpsertByName(r); err != nil {
			return 0, err
		}
	}
	return len(entries), nil
}
