package ingest

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	domainErrors "github.com/polkiloo/plotcatalog/internal/domain/errors"
	"github.com/polkiloo/plotcatalog/internal/domain/repository"
)

const fallbackPrefix = "PLOT"

// DefaultPrefix derives a code prefix from a dataset name.
func DefaultPrefix(dataset string) string {
	var b strings.Builder
	for _, r := range strings.ToUpper(dataset) {
		if (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '_' {
			b.WriteRune(r)
		}
	}
	if b.Len() == 0 {
		return fallbackPrefix
	}
	return b.String()
}

// CodeAssigner hands out plot codes for one batch.
type CodeAssigner struct {
	plots   repository.PlotRepository
	dataset string
	prefix  string
	next    int
	taken   map[string]struct{}
}

func NewCodeAssigner(plots repository.PlotRepository, dataset, prefix string) *CodeAssigner {
	if prefix == "" {
		prefix = DefaultPrefix(dataset)
	}
	return &CodeAssigner{
		plots:   plots,
		dataset: dataset,
		prefix:  prefix,
		next:    1,
		taken:   make(map[string]struct{}),
	}
}

func (a *CodeAssigner) Prefix() string { return a.prefix }

// Load reads the existing codes for the prefix and positions the sequence
// after the highest one.
func (a *CodeAssigner) Load(ctx context.Context) error {
	codes, err := a.plots.CodesWithPrefix(ctx, a.prefix+"-")
	if err != nil {
		return fmt.Errorf("load code sequence for %s: %w", a.prefix, err)
	}
	for _, code := range codes {
		a.Reserve(code)
	}
	return nil
}

// Reserve marks code as used so generated codes never collide with it.
func (a *CodeAssigner) Reserve(code string) {
	a.taken[code] = struct{}{}
	if seq, ok := a.sequence(code); ok && seq >= a.next {
		a.next = seq + 1
	}
}

// Assign returns candidate when present. Otherwise it reuses the code of
// a plot with the same fingerprint in the dataset or generates the next
// free one.
func (a *CodeAssigner) Assign(ctx context.Context, candidate, fingerprint string) (string, error) {
	if candidate != "" {
		a.Reserve(candidate)
		return candidate, nil
	}

	existing, err := a.plots.FindByFingerprint(ctx, a.dataset, fingerprint)
	switch {
	case err == nil:
		return existing.PlotCode, nil
	case !errors.Is(err, domainErrors.ErrNotFound):
		return "", fmt.Errorf("find plot by fingerprint: %w", err)
	}

	for {
		code := fmt.Sprintf("%s-%04d", a.prefix, a.next)
		a.next++
		if _, used := a.taken[code]; used {
			continue
		}
		a.taken[code] = struct{}{}
		return code, nil
	}
}

func (a *CodeAssigner) sequence(code string) (int, bool) {
	rest, ok := strings.CutPrefix(code, a.prefix+"-")
	if !ok || rest == "" {
		return 0, false
	}
	seq, err := strconv.Atoi(rest)
	if err != nil || seq < 0 {
		return 0, false
	}
	return seq, true
}
