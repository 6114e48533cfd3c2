package workouts

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
)

const (
	// RestDay is the single suggestion returned for days without training.
	RestDay = "Rest day"

	WeightTag = "weight"

	keyInfo    = "info"
	keyWeight  = "weight"
	keyPlanner = "planner"
)

var (
	Weekdays = []string{"Monday", "Tuesday", "Wednesday", "Thursday", "Friday"}

	// DefaultAttributes are the per-entry fields every catalog workout uses in practice.
	DefaultAttributes = []string{"dates", "weight", "reps", "sets", "notes"}
)

func isWeekday(day string) bool {
	for _, d := range Weekdays {
		if d == day {
			return true
		}
	}
	return false
}

func isReservedKey(key string) bool {
	return key == keyInfo || key == keyWeight || key == keyPlanner
}

type Workout struct {
	Name       string   `json:"name" yaml:"name"`
	Group      string   `json:"group" yaml:"group"`
	Attributes []string `json:"attributes" yaml:"attributes"`
}

// Catalog holds all known workouts, keyed by workout id.
type Catalog map[string]Workout

func (c Catalog) Validate() error {
	for id, w := range c {
		if id == "" {
			return fmt.Errorf("catalog: empty workout id")
		}
		if isReservedKey(id) {
			return fmt.Errorf("catalog: workout id [%s] is reserved", id)
		}
		if w.Name == "" {
			return fmt.Errorf("catalog: workout [%s] has no name", id)
		}
	}
	return nil
}

// IDs returns the workout ids in sorted order.
func (c Catalog) IDs() []string {
	ids := make([]string, 0, len(c))
	for id := range c {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (c Catalog) Names() []string {
	names := make([]string, 0, len(c))
	for _, id := range c.IDs() {
		names = append(names, c[id].Name)
	}
	return names
}

// ByName does a scan over the whole catalog, returning the first workout
// (in id order) with the given display name.
func (c Catalog) ByName(name string) (string, Workout, bool) {
	for _, id := range c.IDs() {
		if c[id].Name == name {
			return id, c[id], true
		}
	}
	return "", Workout{}, false
}

func (c Catalog) NamesInGroup(group string) []string {
	var names []string
	for _, id := range c.IDs() {
		if c[id].Group == group {
			names = append(names, c[id].Name)
		}
	}
	return names
}

type WeightLog struct {
	Weight []int    `json:"weight"`
	Dates  []string `json:"dates"`
}

// UnmarshalJSON accepts weights stored as numbers or as numeric strings,
// older userdata.json files hold both.
func (w *WeightLog) UnmarshalJSON(data []byte) error {
	var raw struct {
		Weight []any    `json:"weight"`
		Dates  []string `json:"dates"`
	}
	if err := decodeWithNumbers(data, &raw); err != nil {
		return err
	}

	weights := make([]int, 0, len(raw.Weight))
	for i, v := range raw.Weight {
		n, err := toInt(v)
		if err != nil {
			return fmt.Errorf("weight[%d]: %w", i, err)
		}
		weights = append(weights, n)
	}

	w.Weight = weights
	w.Dates = raw.Dates
	if w.Dates == nil {
		w.Dates = []string{}
	}
	return nil
}

// Planner maps a weekday name to the exercise groups planned for it.
type Planner map[string][]string

func DefaultPlanner() Planner {
	return Planner{
		"Sunday":    {},
		"Monday":    {"Chest"},
		"Tuesday":   {"Back"},
		"Wednesday": {"Legs"},
		"Thursday":  {"Shoulders"},
		"Friday":    {"Cardio"},
		"Saturday":  {},
	}
}

// ExerciseLog holds the parallel lists of a single workout, keyed by attribute.
// Values keep whatever JSON type they were stored with (numbers as json.Number).
type ExerciseLog map[string][]any

func NewExerciseLog(attributes []string) ExerciseLog {
	l := make(ExerciseLog, len(attributes))
	for _, a := range attributes {
		l[a] = []any{}
	}
	return l
}

// UserRecord is everything stored for one user. On the wire it is a flat
// JSON object: info, weight and planner next to one key per workout id.
type UserRecord struct {
	Info      map[string]any
	Weight    WeightLog
	Planner   Planner
	Exercises map[string]ExerciseLog
}

func NewUserRecord() *UserRecord {
	return &UserRecord{
		Info: map[string]any{},
		Weight: WeightLog{
			Weight: []int{},
			Dates:  []string{},
		},
		Planner:   DefaultPlanner(),
		Exercises: map[string]ExerciseLog{},
	}
}

func (u *UserRecord) MarshalJSON() ([]byte, error) {
	flat := make(map[string]any, len(u.Exercises)+3)
	for id, l := range u.Exercises {
		flat[id] = l
	}

	info := u.Info
	if info == nil {
		info = map[string]any{}
	}
	weight := u.Weight
	if weight.Weight == nil {
		weight.Weight = []int{}
	}
	if weight.Dates == nil {
		weight.Dates = []string{}
	}
	planner := u.Planner
	if planner == nil {
		planner = Planner{}
	}

	flat[keyInfo] = info
	flat[keyWeight] = weight
	flat[keyPlanner] = planner
	return json.Marshal(flat)
}

func (u *UserRecord) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	rec := NewUserRecord()
	rec.Planner = Planner{}
	for key, value := range raw {
		var err error
		switch key {
		case keyInfo:
			err = decodeWithNumbers(value, &rec.Info)
		case keyWeight:
			err = json.Unmarshal(value, &rec.Weight)
		case keyPlanner:
			err = json.Unmarshal(value, &rec.Planner)
		default:
			var l ExerciseLog
			err = decodeWithNumbers(value, &l)
			if l == nil {
				l = ExerciseLog{}
			}
			rec.Exercises[key] = l
		}
		if err != nil {
			return fmt.Errorf("user record key [%s]: %w", key, err)
		}
	}

	*u = *rec
	return nil
}

func decodeWithNumbers(data []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	return dec.Decode(v)
}
