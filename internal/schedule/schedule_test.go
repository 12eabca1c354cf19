package schedule

import (
	"errors"
	"fmt"
	"math/rand"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_Valid(t *testing.T) {
	tests := []string{
		"* * * * *",
		"*/5 * * * *",
		"0 9 * * *",
		"0 9 * * 1-5",
		"15,45 */2 1,15 * *",
		"0-30/10 8-18 * 1-12 0,6",
		"5/15 * * * *",
		"59 23 31 12 6",
		"  0   0  1  1  0  ",
	}

	for _, expr := range tests {
		t.Run(expr, func(t *testing.T) {
			s, err := Parse(expr)
			require.NoError(t, err)
			assert.Equal(t, strings.Join(strings.Fields(expr), " "), s.String())
		})
	}
}

func TestParse_Invalid(t *testing.T) {
	tests := []struct {
		name string
		expr string
	}{
		{"empty", ""},
		{"four fields", "* * * *"},
		{"six fields", "0 * * * * *"},
		{"minute out of range", "60 * * * *"},
		{"hour out of range", "0 24 * * *"},
		{"day zero", "0 0 0 * *"},
		{"day out of range", "0 0 32 * *"},
		{"month zero", "0 0 1 0 *"},
		{"month out of range", "0 0 1 13 *"},
		{"weekday seven", "0 0 * * 7"},
		{"zero step", "*/0 * * * *"},
		{"empty step", "*/ * * * *"},
		{"double step", "*/5/2 * * * *"},
		{"reversed range", "30-10 * * * *"},
		{"open range", "10- * * * *"},
		{"leading dash", "-5 * * * *"},
		{"empty list element", "1,,2 * * * *"},
		{"trailing comma", "1, * * * *"},
		{"weekday name", "0 9 * * MON"},
		{"month name", "0 9 1 JAN *"},
		{"question mark", "0 9 ? * 1"},
		{"descriptor", "@daily"},
		{"timezone prefix", "TZ=UTC 0 9 * * *"},
		{"letters", "a * * * *"},
		{"negative step", "*/-1 * * * *"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := Parse(tt.expr)
			require.Error(t, err)
			assert.Nil(t, s)

			var invalidErr *InvalidScheduleError
			require.True(t, errors.As(err, &invalidErr), "got %T", err)
			assert.Equal(t, tt.expr, invalidErr.Expr)
			assert.NotEmpty(t, invalidErr.Reason)
		})
	}
}

func TestValidate(t *testing.T) {
	assert.NoError(t, Validate("*/5 * * * *"))
	assert.Error(t, Validate("*/5 * * *"))
}

func TestMatches_EveryFiveMinutes(t *testing.T) {
	s, err := Parse("*/5 * * * *")
	require.NoError(t, err)

	start := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	var fired []int
	for i := 0; i <= 10; i++ {
		if s.Matches(start.Add(time.Duration(i) * time.Minute)) {
			fired = append(fired, i)
		}
	}
	assert.Equal(t, []int{0, 5, 10}, fired)
}

func TestMatches_DayPolicy(t *testing.T) {
	// 2026-03-13 is a Friday, 2026-03-15 a Sunday.
	friday13 := time.Date(2026, 3, 13, 9, 0, 0, 0, time.UTC)
	sunday15 := time.Date(2026, 3, 15, 9, 0, 0, 0, time.UTC)
	monday16 := time.Date(2026, 3, 16, 9, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		expr string
		at   time.Time
		want bool
	}{
		{"both restricted, dom matches", "0 9 13 * 1", friday13, true},
		{"both restricted, dow matches", "0 9 13 * 1", monday16, true},
		{"both restricted, neither", "0 9 13 * 1", sunday15, false},
		{"dom only", "0 9 13 * *", monday16, false},
		{"dom only match", "0 9 13 * *", friday13, true},
		{"dow only", "0 9 * * 0", sunday15, true},
		{"dow only miss", "0 9 * * 0", friday13, false},
		{"dom wildcard step one is unrestricted", "0 9 */1 * 0", friday13, false},
		{"stepped dom is restricted", "0 9 */2 * 1", monday16, true},
		{"stepped dom is restricted, neither", "0 9 */2 * 1", time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC), false},
		{"wildcard in list is unrestricted", "0 9 *,13 * 1", friday13, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := Parse(tt.expr)
			require.NoError(t, err)
			assert.Equal(t, tt.want, s.Matches(tt.at))
		})
	}
}

func TestMatches_UsesTimeLocation(t *testing.T) {
	s, err := Parse("0 9 * * *")
	require.NoError(t, err)

	zone := time.FixedZone("UTC+2", 2*60*60)
	at := time.Date(2026, 1, 1, 7, 0, 0, 0, time.UTC)
	assert.False(t, s.Matches(at))
	assert.True(t, s.Matches(at.In(zone)))
}

func TestNext(t *testing.T) {
	s, err := Parse("30 9 * * *")
	require.NoError(t, err)

	from := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2026, 5, 2, 9, 30, 0, 0, time.UTC), s.Next(from))
}

// naiveMatch is an independent brute-force evaluator of the same grammar.
func naiveMatch(t *testing.T, expr string, at time.Time) bool {
	t.Helper()

	fields := strings.Fields(expr)
	require.Len(t, fields, 5)

	bounds := [5][2]int{{0, 59}, {0, 23}, {1, 31}, {1, 12}, {0, 6}}
	values := [5]int{at.Minute(), at.Hour(), at.Day(), int(at.Month()), int(at.Weekday())}

	var match [5]bool
	var unrestricted [5]bool
	for i, field := range fields {
		for _, elem := range strings.Split(field, ",") {
			if elem == "*" || elem == "*/1" {
				unrestricted[i] = true
			}
			if naiveElement(t, elem, bounds[i][0], bounds[i][1], values[i]) {
				match[i] = true
			}
		}
	}

	if !match[0] || !match[1] || !match[3] {
		return false
	}
	if unrestricted[2] || unrestricted[4] {
		return match[2] && match[4]
	}
	return match[2] || match[4]
}

func naiveElement(t *testing.T, elem string, minV, maxV, v int) bool {
	t.Helper()

	step := 1
	base := elem
	if i := strings.Index(elem, "/"); i >= 0 {
		var err error
		step, err = strconv.Atoi(elem[i+1:])
		require.NoError(t, err)
		base = elem[:i]
	}

	lo, hi := minV, maxV
	switch {
	case base == "*":
	case strings.Contains(base, "-"):
		parts := strings.SplitN(base, "-", 2)
		lo, _ = strconv.Atoi(parts[0])
		hi, _ = strconv.Atoi(parts[1])
	default:
		lo, _ = strconv.Atoi(base)
		hi = lo
		if strings.Contains(elem, "/") {
			hi = maxV
		}
	}

	for x := lo; x <= hi; x += step {
		if x == v {
			return true
		}
	}
	return false
}

func randomElement(rng *rand.Rand, minV, maxV int) string {
	span := maxV - minV + 1
	a := minV + rng.Intn(span)
	b := a + rng.Intn(maxV-a+1)
	step := 1 + rng.Intn(span/2+1)

	switch rng.Intn(6) {
	case 0:
		return "*"
	case 1:
		return strconv.Itoa(a)
	case 2:
		return fmt.Sprintf("*/%d", step)
	case 3:
		return fmt.Sprintf("%d-%d", a, b)
	case 4:
		return fmt.Sprintf("%d-%d/%d", a, b, step)
	default:
		return fmt.Sprintf("%d/%d", a, step)
	}
}

func randomExpr(rng *rand.Rand) string {
	bounds := [5][2]int{{0, 59}, {0, 23}, {1, 31}, {1, 12}, {0, 6}}
	fields := make([]string, 5)
	for i, b := range bounds {
		n := 1 + rng.Intn(3)
		elems := make([]string, n)
		for j := range elems {
			elems[j] = randomElement(rng, b[0], b[1])
		}
		fields[i] = strings.Join(elems, ",")
	}
	return strings.Join(fields, " ")
}

func TestMatches_AgreesWithBruteForce(t *testing.T) {
	rng := rand.New(rand.NewSource(42))

	exprs := []string{
		"* * * * *",
		"*/5 * * * *",
		"0 9 * * 1-5",
		"0 9 13 * 5",
		"*/7 */3 */2 * 1,3",
		"15 10 1-7 * 1",
	}
	for i := 0; i < 60; i++ {
		exprs = append(exprs, randomExpr(rng))
	}

	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for _, expr := range exprs {
		s, err := Parse(expr)
		require.NoError(t, err, expr)

		// A contiguous day of minutes, then a sparse walk across two years.
		for i := 0; i < 1440; i++ {
			at := start.Add(time.Duration(i) * time.Minute)
			require.Equal(t, naiveMatch(t, expr, at), s.Matches(at), "%s at %s", expr, at)
		}
		for i := 0; i < 30000; i++ {
			at := start.Add(time.Duration(i*37) * time.Minute)
			require.Equal(t, naiveMatch(t, expr, at), s.Matches(at), "%s at %s", expr, at)
		}
	}
}

func TestNext_AgreesWithMatches(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	from := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)

	for i := 0; i < 30; i++ {
		expr := randomExpr(rng)
		s, err := Parse(expr)
		require.NoError(t, err)

		next := s.Next(from)
		if next.IsZero() {
			continue
		}
		assert.True(t, s.Matches(next), "%s next=%s", expr, next)
		for at := from.Add(time.Minute); at.Before(next) && at.Sub(from) < 48*time.Hour; at = at.Add(time.Minute) {
			require.False(t, s.Matches(at), "%s matched %s before next %s", expr, at, next)
		}
	}
}
