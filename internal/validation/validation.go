// Package validation checks content entities before they are persisted.
//
// Every function is pure: it never mutates its input and always reports every
// violated rule, in a fixed field order, rather than stopping at the first.
package validation

import (
	"fmt"
	"regexp"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"

	"github.com/starford/strand/internal/apperr"
	"github.com/starford/strand/internal/models"
)

var (
	idPattern        = regexp.MustCompile(`^[a-z0-9-]+$`)
	essayFilePattern = regexp.MustCompile(`^[a-z0-9-]+\.md$`)
	datePattern      = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
)

// Result is the outcome of validating one entity.
type Result struct {
	Valid  bool     `json:"valid"`
	Errors []string `json:"errors"`
}

// Err returns nil for a valid result, otherwise an *apperr.ValidationError
// carrying every rule.
func (r Result) Err() error {
	return r.ErrWithPrefix("")
}

// ErrWithPrefix is Err with a custom message prefix.
func (r Result) ErrWithPrefix(prefix string) error {
	if r.Valid {
		return nil
	}
	return &apperr.ValidationError{Prefix: prefix, Rules: append([]string(nil), r.Errors...)}
}

// checker accumulates rule violations.
type checker struct {
	errs []string
}

// check runs rules against value and records the first one that fails.
func (c *checker) check(value any, rules ...validation.Rule) {
	if err := validation.Validate(value, rules...); err != nil {
		c.errs = append(c.errs, err.Error())
	}
}

func (c *checker) fail(format string, args ...any) {
	c.errs = append(c.errs, fmt.Sprintf(format, args...))
}

func (c *checker) result() Result {
	if len(c.errs) == 0 {
		return Result{Valid: true, Errors: []string{}}
	}
	return Result{Valid: false, Errors: c.errs}
}

func values[T any](in []T) []any {
	out := make([]any, len(in))
	for i, v := range in {
		out[i] = v
	}
	return out
}

// id reports a blank id as missing; otherwise the raw value, surrounding
// whitespace included, must match the id pattern.
func (c *checker) id(id, pattern string) {
	if strings.TrimSpace(id) == "" {
		c.fail("ID is required")
		return
	}
	c.check(id, validation.Match(idPattern).Error(pattern))
}

func (c *checker) title(title string) {
	c.check(strings.TrimSpace(title), validation.Required.Error("Title is required"))
}

func (c *checker) threadsArray(threads []models.ThreadTag) bool {
	if threads == nil {
		c.fail("Threads must be an array")
		return false
	}
	return true
}

func (c *checker) threadTags(threads []models.ThreadTag) {
	if len(threads) == 0 {
		c.fail("At least one thread is required")
		return
	}
	if bad := models.UnknownThreads(threads); len(bad) > 0 {
		names := make([]string, len(bad))
		for i, t := range bad {
			names[i] = string(t)
		}
		c.fail("Invalid threads: %s", strings.Join(names, ", "))
	}
}

func (c *checker) coordinate(axis string, v *float64) {
	c.check(v,
		validation.NotNil.Error(axis+" coordinate must be a number"),
		validation.Min(0.0).Error(axis+" coordinate must be between 0 and 100"),
		validation.Max(100.0).Error(axis+" coordinate must be between 0 and 100"),
	)
}

// Node validates a complete node record.
func Node(n models.Node) Result {
	var c checker
	c.id(n.ID, "ID must be lowercase alphanumeric with hyphens (e.g., my-node-id)")
	c.title(n.Title)
	c.check(n.Type,
		validation.Required.Error("Type is required"),
		validation.In(values(models.NodeTypes)...).Error("Invalid node type"),
	)
	c.threadTags(n.Threads)
	c.coordinate("X", n.X)
	c.coordinate("Y", n.Y)

	if n.Type == models.NodeEssay {
		c.check(n.EssayFile,
			validation.Required.Error("Essay nodes require essayFile"),
			validation.Match(essayFilePattern).Error("Essay file must end in .md and contain only lowercase alphanumeric with hyphens"),
		)
	}
	c.check(n.Created, validation.Match(datePattern).Error("created date must be in YYYY-MM-DD format"))
	return c.result()
}

// Curiosity validates a curiosity side record.
func Curiosity(d models.CuriosityData) Result {
	var c checker
	c.id(d.ID, "ID must be lowercase alphanumeric with hyphens")
	c.title(d.Title)
	c.check(strings.TrimSpace(d.Central), validation.Required.Error("Central label is required"))

	if d.Connected == nil {
		c.fail("Connected items must be an array")
	}
	for i, item := range d.Connected {
		if strings.TrimSpace(item.Label) == "" {
			c.fail("Connected item %d must have a label", i+1)
		}
	}
	c.threadsArray(d.Threads)
	return c.result()
}

// Durational validates a durational side record.
func Durational(d models.DurationalData) Result {
	var c checker
	c.id(d.ID, "ID must be lowercase alphanumeric with hyphens")
	c.title(d.Title)
	if d.Type != models.NodeDurational {
		c.fail(`Type must be "durational"`)
	}
	c.check(d.Subtype, validation.In(values(models.DurationalSubtypes)...).
		Error("Invalid subtype (must be dj-mix, talk, podcast, or presentation)"))

	if d.Media == nil {
		c.fail("Media information is required")
	} else {
		c.check(d.Media.Source,
			validation.Required.Error("Media source is required"),
			validation.In(values(models.MediaSources)...).Error("Invalid media source"),
		)
		c.check(strings.TrimSpace(d.Media.URL),
			validation.Required.Error("Media URL is required"),
			is.RequestURL.Error("Media URL must be a valid URL"),
		)
	}
	c.threadsArray(d.Threads)
	return c.result()
}

// Phrase validates a landing-page phrase.
func Phrase(p models.Phrase) Result {
	var c checker
	c.check(strings.TrimSpace(p.Text), validation.Required.Error("Phrase text is required"))
	return c.result()
}

// Thread validates a connection between two nodes.
func Thread(t models.Thread) Result {
	var c checker
	c.check(strings.TrimSpace(t.From), validation.Required.Error("From node ID is required"))
	c.check(strings.TrimSpace(t.To), validation.Required.Error("To node ID is required"))
	if t.From == t.To {
		c.fail("From and To must be different nodes")
	}
	if c.threadsArray(t.Threads) {
		c.threadTags(t.Threads)
	}
	return c.result()
}
