package feed

import (
	"context"
	_ "embed"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/aridash/ari/internal/errors"
	"github.com/aridash/ari/internal/widget"
)

//go:embed demo.yaml
var demoScript []byte

// NoticeSpec is a scripted system notice.
type NoticeSpec struct {
	ID     string            `yaml:"id,omitempty"`
	Level  string            `yaml:"level"`
	Source string            `yaml:"source,omitempty"`
	Text   string            `yaml:"text"`
	Fields map[string]string `yaml:"fields,omitempty"`
}

// Step is one scripted event, played After the previous one.
type Step struct {
	After   time.Duration `yaml:"after,omitempty"`
	Message *Message      `yaml:"message,omitempty"`
	Notice  *NoticeSpec   `yaml:"notice,omitempty"`
}

// Script replays a recorded agent session so the dashboard can run without
// a live backend.
type Script struct {
	Name  string `yaml:"name"`
	Steps []Step `yaml:"steps"`
}

// ParseScript decodes and validates a YAML script.
func ParseScript(data []byte) (*Script, error) {
	var s Script
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, errors.Wrap(err, "failed to parse script")
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// LoadScript reads a script file.
func LoadScript(path string) (*Script, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read script: %w", err)
	}
	s, err := ParseScript(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return s, nil
}

// DemoScript returns the built-in demo session.
func DemoScript() *Script {
	s, err := ParseScript(demoScript)
	if err != nil {
		panic(fmt.Sprintf("embedded demo script is invalid: %v", err))
	}
	return s
}

// Validate checks that every step carries exactly one event.
func (s *Script) Validate() error {
	var errs []error
	for i, st := range s.Steps {
		field := fmt.Sprintf("steps[%d]", i)
		switch {
		case st.Message == nil && st.Notice == nil:
			errs = append(errs, errors.NewValidationError("step has neither message nor notice").WithField(field))
		case st.Message != nil && st.Notice != nil:
			errs = append(errs, errors.NewValidationError("step has both message and notice").WithField(field))
		case st.After < 0:
			errs = append(errs, errors.NewValidationError("negative delay").WithField(field+".after").WithValue(st.After))
		case st.Message != nil && st.Message.Name == "":
			errs = append(errs, errors.NewValidationError("message has no name").WithField(field+".message.name"))
		}
	}
	return errors.Join(errs...)
}

// Duration returns the total scripted delay.
func (s *Script) Duration() time.Duration {
	var d time.Duration
	for _, st := range s.Steps {
		d += st.After
	}
	return d
}

// Play feeds every step into t, waiting each step's delay divided by speed.
// A speed of 0 or less plays without delays. Play returns ctx.Err() if ctx
// ends first.
func (s *Script) Play(ctx context.Context, t *Translator, speed float64) error {
	timer := time.NewTimer(0)
	defer timer.Stop()
	<-timer.C

	var errs []error
	for _, st := range s.Steps {
		if delay := scaled(st.After, speed); delay > 0 {
			timer.Reset(delay)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-timer.C:
			}
		} else if err := ctx.Err(); err != nil {
			return err
		}

		var err error
		if st.Message != nil {
			err = t.Translate(*st.Message)
		} else {
			n := st.Notice
			err = t.Notice(widget.Notice{
				ID:        n.ID,
				Level:     n.Level,
				Source:    n.Source,
				Text:      n.Text,
				Fields:    n.Fields,
				Timestamp: time.Now(),
			})
		}
		if err != nil {
			// A closed router ends the replay.
			if errors.Is(err, errors.ErrRouterClosed) {
				return err
			}
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func scaled(d time.Duration, speed float64) time.Duration {
	if speed <= 0 {
		return 0
	}
	return time.Duration(float64(d) / speed)
}
