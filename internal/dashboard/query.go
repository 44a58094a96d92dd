package dashboard

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

var ErrInvalidQuery = errors.New("invalid dashboard query")

const (
	DefaultPerPage = 5
	MaxPerPage     = 50
)

type Query struct {
	Q       string
	Status  string
	Page    int
	PerPage int
}

// ParseQuery reads q, status, page and per_page. Missing values take the
// defaults; malformed or out-of-range ones are an error.
func ParseQuery(v url.Values) (Query, error) {
	q := Query{
		Q:       strings.TrimSpace(v.Get("q")),
		Status:  strings.TrimSpace(v.Get("status")),
		Page:    1,
		PerPage: DefaultPerPage,
	}
	if raw := v.Get("page"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			return Query{}, fmt.Errorf("%w: page must be a positive integer", ErrInvalidQuery)
		}
		q.Page = n
	}
	if raw := v.Get("per_page"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > MaxPerPage {
			return Query{}, fmt.Errorf("%w: per_page must be between 1 and %d", ErrInvalidQuery, MaxPerPage)
		}
		q.PerPage = n
	}
	return q, nil
}

// Values is the inverse of ParseQuery; defaults are omitted.
func (q Query) Values() url.Values {
	v := url.Values{}
	if q.Q != "" {
		v.Set("q", q.Q)
	}
	if q.Status != "" {
		v.Set("status", q.Status)
	}
	if q.Page > 1 {
		v.Set("page", strconv.Itoa(q.Page))
	}
	if q.PerPage > 0 && q.PerPage != DefaultPerPage {
		v.Set("per_page", strconv.Itoa(q.PerPage))
	}
	return v
}

// Filter keeps tasks whose title contains q (case-insensitive) and whose
// status equals status (case-insensitive). Empty criteria match everything.
func Filter(tasks []Task, q, status string) []Task {
	q = strings.ToLower(strings.TrimSpace(q))
	status = strings.TrimSpace(status)
	out := make([]Task, 0, len(tasks))
	for _, t := range tasks {
		if q != "" && !strings.Contains(strings.ToLower(t.Title), q) {
			continue
		}
		if status != "" && !strings.EqualFold(t.Status, status) {
			continue
		}
		out = append(out, t)
	}
	return out
}

type Page[T any] struct {
	Items   []T `json:"items"`
	Page    int `json:"page"`
	PerPage int `json:"per_page"`
	Total   int `json:"total"`
	Pages   int `json:"pages"`
}

// Paginate slices items for a 1-based page. A page past the end is empty.
func Paginate[T any](items []T, page, perPage int) Page[T] {
	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = DefaultPerPage
	}
	total := len(items)
	pages := (total + perPage - 1) / perPage
	out := Page[T]{Items: []T{}, Page: page, PerPage: perPage, Total: total, Pages: pages}

	start := (page - 1) * perPage
	if start >= total {
		return out
	}
	end := min(start+perPage, total)
	out.Items = append(out.Items, items[start:end]...)
	return out
}

type Overview struct {
	KPIs      []KPI         `json:"kpis"`
	Tasks     Page[Task]    `json:"tasks"`
	Team      []Member      `json:"team"`
	Reminders []Reminder    `json:"reminders"`
	Activity  []DayActivity `json:"activity"`
	Progress  int           `json:"progress"`
}

func Build(q Query) Overview {
	return Overview{
		KPIs:      KPIs(),
		Tasks:     Paginate(Filter(Tasks(), q.Q, q.Status), q.Page, q.PerPage),
		Team:      Team(),
		Reminders: Reminders(),
		Activity:  Activity(),
		Progress:  progressPercent,
	}
}
