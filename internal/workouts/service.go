package workouts

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"sort"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/2beens/gymtracker/internal/telemetry/tracing"
	"github.com/2beens/gymtracker/pkg"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

const (
	suggestionsCount = 3
	attributesPrompt = "Please add the following information separating each by a comma in order: "
)

type NewServiceParams struct {
	Store        Store
	CatalogCache CatalogCache
	// PasswordHashing stores new passwords as bcrypt hashes. Plaintext
	// passwords already stored keep working either way.
	PasswordHashing bool
	// PasswordHashCost is the bcrypt cost, 0 means the default cost.
	PasswordHashCost int
	// RandSeed makes workout suggestions reproducible, 0 picks a random seed.
	RandSeed uint64
	Now      func() time.Time
}

type Service struct {
	store           Store
	catalogCache    CatalogCache
	passwordHashing bool
	hashCost        int
	now             func() time.Time

	rndMutex sync.Mutex
	rnd      *rand.Rand
}

func NewService(params NewServiceParams) *Service {
	catalogCache := params.CatalogCache
	if catalogCache == nil {
		catalogCache = noCatalogCache{}
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	seed := params.RandSeed
	if seed == 0 {
		seed = rand.Uint64()
	}

	return &Service{
		store:           params.Store,
		catalogCache:    catalogCache,
		passwordHashing: params.PasswordHashing,
		hashCost:        params.PasswordHashCost,
		now:             now,
		rnd:             rand.New(rand.NewPCG(seed, seed>>1)),
	}
}

// Today returns the current weekday name, e.g. "Monday".
func (s *Service) Today() string {
	return s.now().Weekday().String()
}

func (s *Service) catalog(ctx context.Context) (Catalog, error) {
	if c, ok := s.catalogCache.Get(); ok {
		return c, nil
	}

	c, err := s.store.Catalog(ctx)
	if err != nil {
		return nil, fmt.Errorf("load catalog: %w", err)
	}
	if err := s.catalogCache.Set(c); err != nil {
		log.Warnf("workouts service, cache catalog: %s", err)
	}
	return c, nil
}

func (s *Service) passwordMatches(stored, password string) bool {
	if pkg.IsPasswordHash(stored) {
		return pkg.CheckPasswordHash(password, stored)
	}
	return stored == password
}

// Login checks the credentials and brings the user's record up to date
// with the catalog.
func (s *Service) Login(ctx context.Context, username, password string) (err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "service.workouts.login")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.String("username", username))

	if err := s.checkCredentials(ctx, username, password); err != nil {
		return err
	}

	if _, err := s.SyncExercises(ctx, username); err != nil {
		return fmt.Errorf("sync exercises: %w", err)
	}
	return nil
}

func (s *Service) checkCredentials(ctx context.Context, username, password string) error {
	if username == "" {
		return ErrEmptyUsername
	}
	if password == "" {
		return ErrEmptyPassword
	}

	stored, err := s.store.GetCredentials(ctx, username)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return ErrUserNotFound
		}
		return fmt.Errorf("get credentials: %w", err)
	}
	if !s.passwordMatches(stored, password) {
		return ErrWrongPassword
	}
	return nil
}

// CreateAccount adds a new user with the default planner. It only succeeds
// when the username is not known yet.
func (s *Service) CreateAccount(ctx context.Context, username, password string) (err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "service.workouts.createAccount")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.String("username", username))

	err = s.checkCredentials(ctx, username, password)
	switch {
	case err == nil, errors.Is(err, ErrWrongPassword):
		return ErrUsernameTaken
	case !errors.Is(err, ErrUserNotFound):
		return err
	}

	storedPassword := password
	if s.passwordHashing {
		if s.hashCost > 0 {
			storedPassword, err = pkg.HashPasswordWithCost(password, s.hashCost)
		} else {
			storedPassword, err = pkg.HashPassword(password)
		}
		if err != nil {
			return fmt.Errorf("hash password: %w", err)
		}
	}

	if err := s.store.AddUser(ctx, username, storedPassword, NewUserRecord()); err != nil {
		if errors.Is(err, ErrUsernameTaken) {
			return ErrUsernameTaken
		}
		return fmt.Errorf("add user: %w", err)
	}
	log.Infof("new account created: [%s]", username)

	if _, err := s.SyncExercises(ctx, username); err != nil {
		return fmt.Errorf("sync exercises: %w", err)
	}
	return nil
}

// SyncExercises adds an empty log for every catalog workout the user does not have yet.
func (s *Service) SyncExercises(ctx context.Context, username string) (added int, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "service.workouts.syncExercises")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	catalog, err := s.catalog(ctx)
	if err != nil {
		return 0, err
	}

	err = s.store.UpdateUser(ctx, username, func(record *UserRecord) error {
		added = 0
		if record.Exercises == nil {
			record.Exercises = map[string]ExerciseLog{}
		}
		for _, id := range catalog.IDs() {
			if _, ok := record.Exercises[id]; ok {
				continue
			}
			record.Exercises[id] = NewExerciseLog(catalog[id].Attributes)
			added++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	if added == 0 {
		log.Debugf("[%s] all workouts up to date", username)
	} else {
		log.Infof("[%s] added %d workouts to profile", username, added)
	}
	span.SetAttributes(attribute.Int("added", added))
	return added, nil
}

// PickWorkout suggests up to three workouts from the first group planned
// for the given day. Weekends, unknown days and days without a planned
// group are rest days.
func (s *Service) PickWorkout(ctx context.Context, day, username string) (_ []string, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "service.workouts.pickWorkout")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.String("day", day))

	if !isWeekday(day) {
		return []string{RestDay}, nil
	}

	record, err := s.store.GetUser(ctx, username)
	if err != nil {
		return nil, err
	}
	groups := record.Planner[day]
	if len(groups) == 0 {
		return []string{RestDay}, nil
	}

	catalog, err := s.catalog(ctx)
	if err != nil {
		return nil, err
	}

	group := groups[0]
	names := catalog.NamesInGroup(group)
	if len(names) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrEmptyGroup, group)
	}

	s.rndMutex.Lock()
	s.rnd.Shuffle(len(names), func(i, j int) {
		names[i], names[j] = names[j], names[i]
	})
	s.rndMutex.Unlock()

	if len(names) > suggestionsCount {
		names = names[:suggestionsCount]
	}
	return names, nil
}

func capitalize(s string) string {
	lower := cases.Lower(language.Und).String(s)
	r, size := utf8.DecodeRuneInString(lower)
	if r == utf8.RuneError {
		return lower
	}
	return cases.Upper(language.Und).String(string(r)) + lower[size:]
}

// Attributes returns the capitalized attribute names of the named workout.
func (s *Service) Attributes(ctx context.Context, name string) ([]string, error) {
	catalog, err := s.catalog(ctx)
	if err != nil {
		return nil, err
	}

	_, workout, found := catalog.ByName(name)
	if !found {
		return nil, fmt.Errorf("%w: %s", ErrWorkoutNotFound, name)
	}

	attributes := make([]string, 0, len(workout.Attributes))
	for _, a := range workout.Attributes {
		attributes = append(attributes, capitalize(a))
	}
	return attributes, nil
}

// AttributesPrompt is the input hint shown next to a workout.
func (s *Service) AttributesPrompt(ctx context.Context, name string) (string, error) {
	attributes, err := s.Attributes(ctx, name)
	if err != nil {
		return "", err
	}
	return attributesPrompt + strings.Join(attributes, ", "), nil
}

func (s *Service) CheckWorkout(ctx context.Context, name string) (bool, error) {
	catalog, err := s.catalog(ctx)
	if err != nil {
		return false, err
	}
	_, _, found := catalog.ByName(name)
	return found, nil
}

func (s *Service) WorkoutNames(ctx context.Context) ([]string, error) {
	catalog, err := s.catalog(ctx)
	if err != nil {
		return nil, err
	}
	return catalog.Names(), nil
}

func (s *Service) WorkoutID(ctx context.Context, name string) (string, error) {
	catalog, err := s.catalog(ctx)
	if err != nil {
		return "", err
	}
	id, _, found := catalog.ByName(name)
	if !found {
		return "", fmt.Errorf("%w: %s", ErrWorkoutNotFound, name)
	}
	return id, nil
}

// CheckEdits validates every submitted line (workout name -> raw entry) and
// writes them all in one update. Lines are checked in name order and the
// first failure is returned, in which case nothing is written.
func (s *Service) CheckEdits(ctx context.Context, data map[string]string, username string) (err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "service.workouts.checkEdits")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.Int("entries", len(data)))

	if len(data) == 0 {
		return nil
	}

	catalog, err := s.catalog(ctx)
	if err != nil {
		return err
	}

	names := make([]string, 0, len(data))
	for name := range data {
		names = append(names, name)
	}
	sort.Strings(names)

	ids := make([]string, 0, len(names))
	entries := make([]Entry, 0, len(names))
	for _, name := range names {
		id, _, found := catalog.ByName(name)
		if !found {
			return fmt.Errorf("%w: %s", ErrWorkoutNotFound, name)
		}
		entry, err := ParseEntry(data[name])
		if err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		ids = append(ids, id)
		entries = append(entries, entry)
	}

	return s.store.UpdateUser(ctx, username, func(record *UserRecord) error {
		for i := range entries {
			appendEntry(record, ids[i], entries[i])
		}
		return nil
	})
}

// AppendLog appends an already validated entry to the named workout's log.
func (s *Service) AppendLog(ctx context.Context, name string, entry Entry, username string) (err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "service.workouts.appendLog")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	id, err := s.WorkoutID(ctx, name)
	if err != nil {
		return err
	}

	return s.store.UpdateUser(ctx, username, func(record *UserRecord) error {
		appendEntry(record, id, entry)
		return nil
	})
}

func appendEntry(record *UserRecord, workoutID string, entry Entry) {
	if record.Exercises == nil {
		record.Exercises = map[string]ExerciseLog{}
	}
	l, ok := record.Exercises[workoutID]
	if !ok || l == nil {
		l = NewExerciseLog(DefaultAttributes)
		record.Exercises[workoutID] = l
	}
	for attr, v := range entry.values() {
		l[attr] = append(l[attr], v)
	}
}

// Series is a pair of parallel lists: dates and the values for one focus.
type Series struct {
	Dates  []string `json:"dates"`
	Values []any    `json:"values"`
}

// Points returns the dates and the focus list of a tag, where tag is
// either "weight" (body weight log) or a workout id.
func (s *Service) Points(ctx context.Context, tag, focus, username string) (_ Series, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "service.workouts.points")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.String("tag", tag), attribute.String("focus", focus))

	record, err := s.store.GetUser(ctx, username)
	if err != nil {
		return Series{}, err
	}
	return pointsOf(record, tag, focus)
}

func pointsOf(record *UserRecord, tag, focus string) (Series, error) {
	if tag == WeightTag {
		series := Series{Dates: record.Weight.Dates}
		switch focus {
		case "weight":
			series.Values = make([]any, 0, len(record.Weight.Weight))
			for _, w := range record.Weight.Weight {
				series.Values = append(series.Values, w)
			}
		case "dates":
			series.Values = make([]any, 0, len(record.Weight.Dates))
			for _, d := range record.Weight.Dates {
				series.Values = append(series.Values, d)
			}
		default:
			return Series{}, fmt.Errorf("%w: %s", ErrUnknownFocus, focus)
		}
		return series, nil
	}

	l, ok := record.Exercises[tag]
	if !ok {
		return Series{}, fmt.Errorf("%w: %s", ErrUnknownTag, tag)
	}
	values, ok := l[focus]
	if !ok {
		return Series{}, fmt.Errorf("%w: %s", ErrUnknownFocus, focus)
	}

	dates := make([]string, 0, len(l["dates"]))
	for _, d := range l["dates"] {
		dates = append(dates, fmt.Sprint(d))
	}
	return Series{Dates: dates, Values: values}, nil
}

// LogWeight records body weight for a date, replacing an earlier value
// logged for the same date.
func (s *Service) LogWeight(ctx context.Context, weight int, date, username string) (err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "service.workouts.logWeight")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	if _, err := ParseDate(date); err != nil {
		return err
	}

	return s.store.UpdateUser(ctx, username, func(record *UserRecord) error {
		for i, d := range record.Weight.Dates {
			if d == date && i < len(record.Weight.Weight) {
				record.Weight.Weight[i] = weight
				return nil
			}
		}
		record.Weight.Dates = append(record.Weight.Dates, date)
		record.Weight.Weight = append(record.Weight.Weight, weight)
		return nil
	})
}
