package exam

import (
	"context"
	"fmt"
	"math/rand"
	"sync"

	"entrytest/internal/question"
	"entrytest/internal/settings"
)

// QuestionPool is the query surface the composer needs from the bank.
type QuestionPool interface {
	FindIDs(ctx context.Context, f question.Filter) ([]int64, error)
}

// Composer draws a stratified random question set for one student.
type Composer struct {
	pool QuestionPool

	mu  sync.Mutex
	rng *rand.Rand
}

func NewComposer(pool QuestionPool, seed int64) *Composer {
	return &Composer{pool: pool, rng: rand.New(rand.NewSource(seed))}
}

// TierTargets splits n across difficulties. Easy and Medium are rounded half
// up; Hard takes the remainder and may go negative when rounding overshoots.
func TierTargets(n, easyPct, mediumPct int) map[question.Difficulty]int {
	easy := roundPercent(n, easyPct)
	medium := roundPercent(n, mediumPct)
	return map[question.Difficulty]int{
		question.Easy:   easy,
		question.Medium: medium,
		question.Hard:   n - easy - medium,
	}
}

func roundPercent(n, pct int) int {
	v := 2*n*pct + 100
	if v < 0 {
		return -((-v + 199) / 200)
	}
	return v / 200
}

// Compose returns the frozen presentation order for a new session. A subject
// whose pool is exhausted after both fallbacks contributes fewer questions.
func (c *Composer) Compose(ctx context.Context, classLevel string, st settings.Settings) ([]int64, error) {
	out := make([]int64, 0, st.Total())
	for _, subject := range question.Subjects {
		ids, err := c.composeSubject(ctx, subject, classLevel, st)
		if err != nil {
			return nil, err
		}
		out = append(out, ids...)
	}
	c.shuffle(out)
	return out, nil
}

func (c *Composer) composeSubject(ctx context.Context, subject question.Subject, classLevel string, st settings.Settings) ([]int64, error) {
	n := st.QuestionsFor(subject)
	if n <= 0 {
		return nil, nil
	}

	chosen := make(map[int64]struct{}, n)
	picked := make([]int64, 0, n)
	take := func(f question.Filter, want int) error {
		if want <= 0 {
			return nil
		}
		ids, err := c.pool.FindIDs(ctx, f)
		if err != nil {
			return fmt.Errorf("compose %s: %w", subject, err)
		}
		for _, id := range c.sample(ids, want, chosen) {
			chosen[id] = struct{}{}
			picked = append(picked, id)
		}
		return nil
	}

	targets := TierTargets(n, st.EasyPercent, st.MediumPercent)
	for _, d := range question.Difficulties {
		d := d
		if err := take(question.Filter{Subject: subject, ClassLevel: &classLevel, Difficulty: &d}, targets[d]); err != nil {
			return nil, err
		}
	}
	if err := take(question.Filter{Subject: subject, ClassLevel: &classLevel}, n-len(picked)); err != nil {
		return nil, err
	}
	if err := take(question.Filter{Subject: subject}, n-len(picked)); err != nil {
		return nil, err
	}
	return picked, nil
}

// sample draws up to want ids uniformly from pool, skipping excluded ones.
func (c *Composer) sample(pool []int64, want int, exclude map[int64]struct{}) []int64 {
	candidates := make([]int64, 0, len(pool))
	seen := make(map[int64]struct{}, len(pool))
	for _, id := range pool {
		if _, ok := exclude[id]; ok {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		candidates = append(candidates, id)
	}
	c.shuffle(candidates)
	if len(candidates) > want {
		candidates = candidates[:want]
	}
	return candidates
}

func (c *Composer) shuffle(ids []int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rng.Shuffle(len(ids), func(i, j int) { ids[i], ids[j] = ids[j], ids[i] })
}
