package domain

import (
	"context"
	"errors"
	"fmt"
	"math"

	"golang.org/x/sync/errgroup"
)

type Availability struct {
	Domain    string `json:"domain"`
	Available bool   `json:"available"`
	Reason    string `json:"reason"`
	Tier      Tier   `json:"tier"`
}

// Availability reports whether the registrable part of raw is unregistered.
// Only a NotFound registration answer means available; any other failure is
// returned as is.
func (c *Client) Availability(ctx context.Context, raw string) (*Availability, error) {
	name, err := Normalize("availability", raw)
	if err != nil {
		return nil, err
	}
	return c.availability(ctx, name)
}

func (c *Client) availability(ctx context.Context, name string) (*Availability, error) {
	target := Registrable(name)

	rec, err := c.registration(ctx, target)
	if err == nil {
		reason := "registration record exists"
		if rec.Registrar != "" {
			reason = "registered with " + rec.Registrar
		}
		return &Availability{Domain: target, Available: false, Reason: reason, Tier: rec.Tier}, nil
	}

	var le *LookupError
	if errors.As(err, &le) && le.Kind == KindNotFound {
		return &Availability{Domain: target, Available: true, Reason: "no registration record found", Tier: le.Tier}, nil
	}
	return nil, err
}

type ItemError struct {
	Kind    ErrorKind `json:"kind"`
	Message string    `json:"message"`
}

type BulkItem struct {
	Domain       string        `json:"domain"`
	Availability *Availability `json:"availability,omitempty"`
	Error        *ItemError    `json:"error,omitempty"`
}

type BulkSummary struct {
	Total     int `json:"total"`
	Available int `json:"available"`
	Taken     int `json:"taken"`
	Errors    int `json:"errors"`
}

type BulkResult struct {
	Results []BulkItem  `json:"results"`
	Summary BulkSummary `json:"summary"`
}

// BulkCheck checks availability for every domain concurrently. Results keep
// input order and one item's failure never affects another.
func (c *Client) BulkCheck(ctx context.Context, raws []string) (*BulkResult, error) {
	maxBulk := c.MaxBulk
	if maxBulk <= 0 {
		maxBulk = DefaultMaxBulk
	}
	if len(raws) == 0 {
		return nil, validationError("bulk", "", "domains cannot be empty")
	}
	if len(raws) > maxBulk {
		return nil, validationError("bulk", "", "too many domains: %d (max %d)", len(raws), maxBulk)
	}

	limit := c.BulkConcurrency
	if limit <= 0 {
		limit = DefaultBulkConcurrency
	}

	results := make([]BulkItem, len(raws))
	var g errgroup.Group
	g.SetLimit(limit)
	for i, raw := range raws {
		g.Go(func() error {
			results[i] = c.bulkItem(ctx, raw)
			return nil
		})
	}
	_ = g.Wait() // items never return errors

	out := &BulkResult{Results: results, Summary: BulkSummary{Total: len(results)}}
	for _, item := range results {
		switch {
		case item.Error != nil:
			out.Summary.Errors++
		case item.Availability.Available:
			out.Summary.Available++
		default:
			out.Summary.Taken++
		}
	}
	return out, nil
}

func (c *Client) bulkItem(ctx context.Context, raw string) BulkItem {
	item := BulkItem{Domain: raw}
	avail, err := c.Availability(ctx, raw)
	if err != nil {
		item.Error = &ItemError{Kind: KindOf(err), Message: err.Error()}
		return item
	}
	item.Domain = avail.Domain
	item.Availability = avail
	return item
}

type DomainAge struct {
	Domain       string  `json:"domain"`
	CreationDate string  `json:"creation_date"`
	AgeDays      int     `json:"age_days"`
	AgeYears     float64 `json:"age_years"`
	Registrar    string  `json:"registrar,omitempty"`
	Tier         Tier    `json:"tier"`
}

// DomainAge reports how long raw has been registered.
func (c *Client) DomainAge(ctx context.Context, raw string) (*DomainAge, error) {
	name, err := Normalize("age", raw)
	if err != nil {
		return nil, err
	}

	rec, err := c.registration(ctx, name)
	if err != nil {
		return nil, err
	}
	if rec.CreationDate.IsZero() {
		return nil, &LookupError{Kind: KindParse, Op: "age", Domain: name, Source: rec.Endpoint, Tier: rec.Tier, Err: fmt.Errorf("registration record has no creation date")}
	}

	days := int(c.now().Sub(rec.CreationDate).Hours() / 24)
	if days < 0 {
		days = 0
	}
	return &DomainAge{
		Domain:       name,
		CreationDate: rec.CreationDate.Format("2006-01-02"),
		AgeDays:      days,
		AgeYears:     math.Round(float64(days)/365.25*100) / 100,
		Registrar:    rec.Registrar,
		Tier:         rec.Tier,
	}, nil
}
