package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"sort"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/Tiliavir/trivial-work-report/internal/datecalc"
	"github.com/Tiliavir/trivial-work-report/internal/model"
)

var (
	ErrIndexOutOfRange = errors.New("report index out of range")
	ErrInvalidDate     = datecalc.ErrInvalidDate
	ErrInvertedRange   = errors.New("end date is before start date")
	ErrUnknownOwner    = errors.New("unknown owner")
	ErrCorruptData     = errors.New("corrupt data file")
)

// Store holds every report in memory, partitioned by owner and start date.
// It is not safe for concurrent use; persistence only happens on Save.
type Store struct {
	path    string
	log     zerolog.Logger
	reports map[model.Owner]model.Buckets
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger used to report load/save failures and skipped records.
func WithLogger(l zerolog.Logger) Option {
	return func(s *Store) {
		s.log = l
	}
}

// New returns an empty store backed by the JSON file at path.
// Nothing is read until Load is called.
func New(path string, opts ...Option) *Store {
	s := &Store{path: path, log: log.Logger}
	for _, opt := range opts {
		opt(s)
	}
	s.reset()
	return s
}

// Path returns the data file location.
func (s *Store) Path() string {
	return s.path
}

func (s *Store) reset() {
	s.reports = map[model.Owner]model.Buckets{
		model.Personal: {},
		model.Shared:   {},
	}
}

// ListReportsFor returns a copy of the bucket for (owner, date).
func (s *Store) ListReportsFor(owner model.Owner, date string) []model.Report {
	bucket := s.reports[owner][date]
	out := make([]model.Report, len(bucket))
	copy(out, bucket)
	return out
}

// HasReports reports whether the (owner, date) bucket is non-empty.
func (s *Store) HasReports(owner model.Owner, date string) bool {
	return len(s.reports[owner][date]) > 0
}

// FindReportsForDate returns every report whose effective interval covers
// date, scanning the given owners or both when none are given. Records with
// unparsable dates are skipped. Results are ordered by owner, then bucket
// date ascending, then insertion order.
func (s *Store) FindReportsForDate(date string, owners ...model.Owner) ([]model.Match, error) {
	target, err := datecalc.ParseDate(date)
	if err != nil {
		return nil, err
	}

	var found []model.Match
	for _, m := range s.All(owners...) {
		from, to, err := datecalc.Interval(m.Report.StartDate, m.Report.EndDate, m.BucketDate)
		if err != nil {
			s.log.Debug().Err(err).
				Str("owner", string(m.Owner)).
				Str("bucket", m.BucketDate).
				Int("index", m.Index).
				Msg("skipping report with unparsable date")
			continue
		}
		if datecalc.Contains(from, to, target) {
			found = append(found, m)
		}
	}
	return found, nil
}

// ReportsBetween returns every report whose effective interval overlaps
// [from, to], in the same order as FindReportsForDate.
func (s *Store) ReportsBetween(from, to string, owners ...model.Owner) ([]model.Match, error) {
	rangeFrom, rangeTo, err := datecalc.Interval(from, to, from)
	if err != nil {
		return nil, err
	}
	if rangeTo.Before(rangeFrom) {
		return nil, fmt.Errorf("%w: %s..%s", ErrInvertedRange, from, to)
	}

	var found []model.Match
	for _, m := range s.All(owners...) {
		start, end, err := datecalc.Interval(m.Report.StartDate, m.Report.EndDate, m.BucketDate)
		if err != nil {
			s.log.Debug().Err(err).Str("bucket", m.BucketDate).Msg("skipping report with unparsable date")
			continue
		}
		if datecalc.Overlaps(start, end, rangeFrom, rangeTo) {
			found = append(found, m)
		}
	}
	return found, nil
}

// All returns every stored report with its current address.
func (s *Store) All(owners ...model.Owner) []model.Match {
	var all []model.Match
	for _, owner := range scanOwners(owners) {
		buckets := s.reports[owner]
		dates := make([]string, 0, len(buckets))
		for date := range buckets {
			dates = append(dates, date)
		}
		sort.Strings(dates)

		for _, date := range dates {
			for i, r := range buckets[date] {
				all = append(all, model.Match{Owner: owner, BucketDate: date, Index: i, Report: r})
			}
		}
	}
	return all
}

// scanOwners keeps the fixed namespace order regardless of argument order.
func scanOwners(owners []model.Owner) []model.Owner {
	if len(owners) == 0 {
		return model.Owners
	}
	var out []model.Owner
	for _, o := range model.Owners {
		if slices.Contains(owners, o) {
			out = append(out, o)
		}
	}
	return out
}

// Locate finds the current address of the report with the given id.
func (s *Store) Locate(id string) (model.Match, bool) {
	return s.find(func(r model.Report) bool { return r.ID == id })
}

// FindByExternalID finds a report imported from an external calendar.
func (s *Store) FindByExternalID(externalID string) (model.Match, bool) {
	if externalID == "" {
		return model.Match{}, false
	}
	return s.find(func(r model.Report) bool { return r.ExternalID == externalID })
}

func (s *Store) find(pred func(model.Report) bool) (model.Match, bool) {
	for _, m := range s.All() {
		if pred(m.Report) {
			return m, true
		}
	}
	return model.Match{}, false
}

// AddReport appends r to the (owner, date) bucket and returns its position.
// An empty StartDate is set to date; a zero Report adds a blank record.
func (s *Store) AddReport(owner model.Owner, date string, r model.Report) (int, error) {
	if err := prepare(owner, date, &r); err != nil {
		return -1, fmt.Errorf("adding report: %w", err)
	}
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	return s.appendReport(owner, date, r), nil
}

// GetReport returns the report at (owner, date, index).
func (s *Store) GetReport(owner model.Owner, date string, index int) (model.Report, error) {
	bucket := s.reports[owner][date]
	if index < 0 || index >= len(bucket) {
		return model.Report{}, fmt.Errorf("%w: %s %s #%d", ErrIndexOutOfRange, owner, date, index)
	}
	return bucket[index], nil
}

// UpdateReport replaces the report at (owner, date, index) in place. The
// position must already exist; the stored report keeps its id.
func (s *Store) UpdateReport(owner model.Owner, date string, index int, r model.Report) error {
	current, err := s.GetReport(owner, date, index)
	if err != nil {
		return fmt.Errorf("updating report: %w", err)
	}
	if err := prepare(owner, date, &r); err != nil {
		return fmt.Errorf("updating report: %w", err)
	}
	r.ID = current.ID
	s.reports[owner][date][index] = r
	return nil
}

// MoveReport removes the report at (owner, oldDate, index), if that position
// exists, and appends r to (newOwner, newDate). An empty newOwner keeps the
// owner. Everything is validated before either bucket changes. The moved
// report keeps the id of the record it replaces.
func (s *Store) MoveReport(owner model.Owner, oldDate, newDate string, index int, r model.Report, newOwner model.Owner) (int, error) {
	if newOwner == "" {
		newOwner = owner
	}
	if !owner.Valid() {
		return -1, fmt.Errorf("moving report: %w %q", ErrUnknownOwner, owner)
	}
	if err := prepare(newOwner, newDate, &r); err != nil {
		return -1, fmt.Errorf("moving report: %w", err)
	}

	if src := s.reports[owner][oldDate]; index >= 0 && index < len(src) {
		r.ID = src[index].ID
		s.removeReport(owner, oldDate, index)
	} else {
		s.log.Debug().
			Str("owner", string(owner)).
			Str("date", oldDate).
			Int("index", index).
			Msg("move source no longer exists, appending only")
	}
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	return s.appendReport(newOwner, newDate, r), nil
}

// DeleteReport removes the report at (owner, date, index). Later positions
// shift down by one. Missing buckets or indices are a no-op.
func (s *Store) DeleteReport(owner model.Owner, date string, index int) bool {
	if index < 0 || index >= len(s.reports[owner][date]) {
		return false
	}
	s.removeReport(owner, date, index)
	return true
}

// ListCategories returns all distinct non-empty categories, sorted.
func (s *Store) ListCategories() []string {
	seen := map[string]bool{}
	for _, buckets := range s.reports {
		for _, bucket := range buckets {
			for _, r := range bucket {
				if r.Category != "" {
					seen[r.Category] = true
				}
			}
		}
	}
	cats := make([]string, 0, len(seen))
	for c := range seen {
		cats = append(cats, c)
	}
	sort.Strings(cats)
	return cats
}

func (s *Store) appendReport(owner model.Owner, date string, r model.Report) int {
	s.reports[owner][date] = append(s.reports[owner][date], r)
	return len(s.reports[owner][date]) - 1
}

func (s *Store) removeReport(owner model.Owner, date string, index int) {
	bucket := slices.Delete(s.reports[owner][date], index, index+1)
	if len(bucket) == 0 {
		delete(s.reports[owner], date)
		return
	}
	s.reports[owner][date] = bucket
}

// prepare validates a report before it is stored under (owner, date) and
// fills in an empty StartDate.
func prepare(owner model.Owner, date string, r *model.Report) error {
	if !owner.Valid() {
		return fmt.Errorf("%w %q", ErrUnknownOwner, owner)
	}
	if _, err := datecalc.ParseDate(date); err != nil {
		return err
	}
	if r.StartDate == "" {
		r.StartDate = date
	}
	from, to, err := datecalc.Interval(r.StartDate, r.EndDate, date)
	if err != nil {
		return err
	}
	if to.Before(from) {
		return fmt.Errorf("%w: %s..%s", ErrInvertedRange, r.StartDate, r.EndDate)
	}
	return nil
}

// Save writes the whole store to its data file. The write goes to a temp
// file that is renamed into place; failures are logged and returned, and
// never affect the in-memory state.
func (s *Store) Save() error {
	if err := s.save(); err != nil {
		s.log.Error().Err(err).Str("path", s.path).Msg("saving reports failed")
		return err
	}
	return nil
}

func (s *Store) save() error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("storage error creating directories: %w", err)
	}

	doc := model.Document{
		Personal: s.reports[model.Personal],
		Shared:   s.reports[model.Shared],
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("storage error marshalling JSON: %w", err)
	}

	tmpPath := s.path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o600); err != nil {
		return fmt.Errorf("storage error writing temp file: %w", err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("storage error renaming temp file: %w", err)
	}
	return nil
}

// Load replaces the in-memory state with the data file's content. A missing
// file leaves the store empty. Unreadable or malformed data also leaves the
// store empty; a malformed file is moved aside to <path>.corrupt and an
// error wrapping ErrCorruptData is returned.
func (s *Store) Load() error {
	s.reset()

	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		err = fmt.Errorf("storage error reading %s: %w", s.path, err)
		s.log.Error().Err(err).Msg("loading reports failed")
		return err
	}

	doc, err := decodeDocument(data)
	if err != nil {
		backupPath := s.path + ".corrupt"
		_ = os.Rename(s.path, backupPath)
		err = fmt.Errorf("%w %s (backed up to %s): %v", ErrCorruptData, s.path, backupPath, err)
		s.log.Error().Err(err).Msg("loading reports failed, starting empty")
		return err
	}

	s.reports[model.Personal] = doc.Personal
	s.reports[model.Shared] = doc.Shared
	s.assignMissingIDs()
	return nil
}

// decodeDocument accepts the owner-partitioned layout and the legacy flat
// {date: [report...]} layout, which becomes the personal namespace.
func decodeDocument(data []byte) (model.Document, error) {
	var top map[string]json.RawMessage
	if err := json.Unmarshal(data, &top); err != nil {
		return model.Document{}, err
	}

	var doc model.Document
	_, hasPersonal := top[string(model.Personal)]
	_, hasShared := top[string(model.Shared)]
	if hasPersonal || hasShared {
		if err := json.Unmarshal(data, &doc); err != nil {
			return model.Document{}, err
		}
	} else {
		var legacy model.Buckets
		if err := json.Unmarshal(data, &legacy); err != nil {
			return model.Document{}, fmt.Errorf("legacy layout: %w", err)
		}
		doc.Personal = legacy
	}

	if doc.Personal == nil {
		doc.Personal = model.Buckets{}
	}
	if doc.Shared == nil {
		doc.Shared = model.Buckets{}
	}
	return doc, nil
}

func (s *Store) assignMissingIDs() {
	for _, buckets := range s.reports {
		for _, bucket := range buckets {
			for i := range bucket {
				if bucket[i].ID == "" {
					bucket[i].ID = uuid.NewString()
				}
			}
		}
	}
}
