package workouts

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/2beens/gymtracker/internal/telemetry/tracing"
)

const graphMargin = 5

type GraphPoint struct {
	Date  time.Time `json:"date"`
	Value int       `json:"value"`
}

// Graph is everything needed to draw a progress chart, except the drawing.
type Graph struct {
	Title  string       `json:"title"`
	XLabel string       `json:"xLabel"`
	YLabel string       `json:"yLabel"`
	Points []GraphPoint `json:"points"`
	YMin   int          `json:"yMin"`
	YMax   int          `json:"yMax"`
}

func toInt(v any) (int, error) {
	switch n := v.(type) {
	case int:
		return n, nil
	case int64:
		return int(n), nil
	case float64:
		return int(n), nil
	case json.Number:
		if i, err := n.Int64(); err == nil {
			return int(i), nil
		}
		f, err := n.Float64()
		if err != nil {
			return 0, fmt.Errorf("%w: %v", ErrNotNumeric, v)
		}
		return int(f), nil
	case string:
		i, err := strconv.Atoi(strings.TrimSpace(n))
		if err != nil {
			return 0, fmt.Errorf("%w: %q", ErrNotNumeric, n)
		}
		return i, nil
	default:
		return 0, fmt.Errorf("%w: %v", ErrNotNumeric, v)
	}
}

// Graph builds the chart data for a tag/focus pair. Body weight is
// titled "Weight Overtime", workouts "<name> Progress".
func (s *Service) Graph(ctx context.Context, tag, focus, username string) (_ *Graph, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "service.workouts.graph")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	series, err := s.Points(ctx, tag, focus, username)
	if err != nil {
		return nil, err
	}

	title := "Weight Overtime"
	if tag != WeightTag {
		catalog, err := s.catalog(ctx)
		if err != nil {
			return nil, err
		}
		name := tag
		if w, ok := catalog[tag]; ok {
			name = w.Name
		}
		title = name + " Progress"
	}

	return buildGraph(title, focus, series)
}

func buildGraph(title, focus string, series Series) (*Graph, error) {
	n := min(len(series.Dates), len(series.Values))
	if n == 0 {
		return nil, ErrNoData
	}

	g := &Graph{
		Title:  title,
		XLabel: "Date",
		YLabel: capitalize(focus),
		Points: make([]GraphPoint, 0, n),
	}

	yMin, yMax := math.MaxInt, math.MinInt
	for i := 0; i < n; i++ {
		date, err := ParseDate(series.Dates[i])
		if err != nil {
			return nil, err
		}
		value, err := toInt(series.Values[i])
		if err != nil {
			return nil, err
		}
		yMin = min(yMin, value)
		yMax = max(yMax, value)
		g.Points = append(g.Points, GraphPoint{Date: date, Value: value})
	}

	sort.SliceStable(g.Points, func(i, j int) bool {
		return g.Points[i].Date.Before(g.Points[j].Date)
	})
	g.YMin = yMin - graphMargin
	g.YMax = yMax + graphMargin
	return g, nil
}
