// Package types holds the values passed between the submission stages.
package types

import (
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/google/uuid"
)

// Poll question bounds.
const (
	MinPollQuestions = 2
	MaxPollQuestions = 10
)

var (
	ErrScheduleInPast = errors.New("schedule must be in the future")
	ErrInvalidPeriod  = errors.New("period must be 1, 3, 7 or 30 days or unlimited")
	ErrPollQuestions  = fmt.Errorf("poll needs %d to %d questions", MinPollQuestions, MaxPollQuestions)
	ErrInvalidPrice   = errors.New("price must not be negative")
	ErrEmptyJob       = errors.New("nothing to submit")
)

// Period is a duration class for expiration and polls. Only the values
// below are valid.
type Period int

const (
	Period1Day      Period = 1
	Period3Days     Period = 3
	Period7Days     Period = 7
	Period30Days    Period = 30
	PeriodUnlimited Period = -1
)

// Periods lists every valid period in display order.
var Periods = []Period{Period1Day, Period3Days, Period7Days, Period30Days, PeriodUnlimited}

// ParsePeriod accepts a day count or "unlimited".
func ParsePeriod(s string) (Period, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "unlimited" || s == "none" || s == "no limit" {
		return PeriodUnlimited, nil
	}
	for _, suffix := range []string{"days", "day", "d"} {
		if trimmed, ok := strings.CutSuffix(s, suffix); ok {
			s = strings.TrimSpace(trimmed)
			break
		}
	}
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidPeriod, s)
	}
	p := Period(n)
	if !p.Valid() {
		return 0, fmt.Errorf("%w: %q", ErrInvalidPeriod, s)
	}
	return p, nil
}

func (p Period) Valid() bool {
	switch p {
	case Period1Day, Period3Days, Period7Days, Period30Days, PeriodUnlimited:
		return true
	}
	return false
}

// Label is the option text the composer shows for p.
func (p Period) Label() string {
	switch p {
	case Period1Day:
		return "1 day"
	case PeriodUnlimited:
		return "No limit"
	}
	return fmt.Sprintf("%d days", int(p))
}

func (p Period) String() string {
	if p == PeriodUnlimited {
		return "unlimited"
	}
	return strconv.Itoa(int(p))
}

func (p *Period) UnmarshalText(b []byte) error {
	v, err := ParsePeriod(string(b))
	if err != nil {
		return err
	}
	*p = v
	return nil
}

func (p Period) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// Poll is an interactive poll attached to a post.
type Poll struct {
	Period    Period   `toml:"period"`
	Questions []string `toml:"questions"`
}

// Attachment is one file to upload. Values are never modified after
// creation; preparation and renames produce new values.
type Attachment struct {
	ID        string `toml:"-"`
	Source    string `toml:"source"`
	Title     string `toml:"title"`
	Prepared  bool   `toml:"-"`
	LocalPath string `toml:"-"`
	// Generation counts rename-and-requeue rounds; originals are 0.
	Generation int `toml:"-"`
}

// NewAttachment creates an unprepared attachment with a fresh id.
func NewAttachment(source, title string) Attachment {
	if title == "" {
		title = filepath.Base(source)
	}
	return Attachment{ID: uuid.NewString(), Source: source, Title: title}
}

// Remote reports whether the source must be downloaded first.
func (a Attachment) Remote() bool {
	s := strings.ToLower(a.Source)
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}

// WithLocalPath returns a prepared copy pointing at path.
func (a Attachment) WithLocalPath(path string) Attachment {
	a.Prepared = true
	a.LocalPath = path
	return a
}

// Requeued returns a new attachment for the renamed file at path, one
// generation later.
func (a Attachment) Requeued(path string) Attachment {
	return Attachment{
		ID:         uuid.NewString(),
		Source:     a.Source,
		Title:      a.Title,
		Prepared:   true,
		LocalPath:  path,
		Generation: a.Generation + 1,
	}
}

// SubmissionJob is everything submitted in one pass.
type SubmissionJob struct {
	Text        string       `toml:"text"`
	Attachments []Attachment `toml:"attachments"`
	// Price of zero means the post is free.
	Price      float64    `toml:"price"`
	Expiration *Period    `toml:"expiration"`
	Schedule   *time.Time `toml:"schedule"`
	Poll       *Poll      `toml:"poll"`
	Tweet      bool       `toml:"tweet"`
	Keywords   []string   `toml:"keywords"`
	Tags       []string   `toml:"tags"`
}

// Validate checks the job against now without touching any session.
func (j SubmissionJob) Validate(now time.Time) error {
	var errs []error
	if strings.TrimSpace(j.Text) == "" && len(j.Attachments) == 0 && j.Poll == nil {
		errs = append(errs, ErrEmptyJob)
	}
	if j.Schedule != nil && !j.Schedule.After(now) {
		errs = append(errs, fmt.Errorf("%w: %s", ErrScheduleInPast, j.Schedule.Format(time.RFC3339)))
	}
	if j.Expiration != nil && !j.Expiration.Valid() {
		errs = append(errs, fmt.Errorf("expiration: %w", ErrInvalidPeriod))
	}
	if j.Poll != nil {
		if !j.Poll.Period.Valid() {
			errs = append(errs, fmt.Errorf("poll: %w", ErrInvalidPeriod))
		}
		if n := len(j.Poll.Questions); n < MinPollQuestions || n > MaxPollQuestions {
			errs = append(errs, fmt.Errorf("%w, got %d", ErrPollQuestions, n))
		}
	}
	if j.Price < 0 {
		errs = append(errs, ErrInvalidPrice)
	}
	return errors.Join(errs...)
}

// LoadJobFile reads a job from a TOML file and assigns attachment ids.
// Relative local sources resolve against the file's directory.
func LoadJobFile(path string) (SubmissionJob, error) {
	var j SubmissionJob
	if _, err := toml.DecodeFile(path, &j); err != nil {
		return SubmissionJob{}, fmt.Errorf("failed to read job %s: %w", path, err)
	}
	dir := filepath.Dir(path)
	for i, a := range j.Attachments {
		src := a.Source
		if !a.Remote() && !filepath.IsAbs(src) {
			src = filepath.Join(dir, src)
		}
		j.Attachments[i] = NewAttachment(src, a.Title)
	}
	return j, nil
}
