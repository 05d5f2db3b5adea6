package facts

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"math/rand"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

type MapperSuite struct {
	suite.Suite
	logs   bytes.Buffer
	mapper *Mapper
}

func TestMapperSuite(t *testing.T) {
	suite.Run(t, new(MapperSuite))
}

func (s *MapperSuite) SetupTest() {
	s.logs.Reset()
	s.mapper = NewMapper(WithLogger(slog.New(slog.NewJSONHandler(&s.logs, nil))))
}

func (s *MapperSuite) apply(store *Store, paths []string, raw string) (*Store, []Diagnostic) {
	answer, err := ParseAnswer(json.RawMessage(raw))
	s.Require().NoError(err)
	return s.mapper.Apply(store, paths, answer)
}

func (s *MapperSuite) TestScalarWrittenToEveryPath() {
	out, diags := s.apply(NewStore(), []string{"landlord.full_name", "notice.signatory_name"}, `"Jane Smith"`)

	s.Empty(diags)
	s.Equal("Jane Smith", out.Text("landlord.full_name"))
	s.Equal("Jane Smith", out.Text("notice.signatory_name"))
	s.Equal([]string{"landlord.full_name", "notice.signatory_name"}, out.Keys())
}

func (s *MapperSuite) TestNullAndArrayVerbatim() {
	out, diags := s.apply(NewStore(), []string{"tenancy.end_date"}, `null`)
	s.Empty(diags)
	v, ok := out.Get("tenancy.end_date")
	s.True(ok)
	s.True(v.IsNull())

	out, diags = s.apply(out, []string{"notice.grounds"}, `["8", "10", 11]`)
	s.Empty(diags)
	s.Equal([]string{"8", "10", "11"}, out.TextList("notice.grounds"))
}

func (s *MapperSuite) TestArrayWithObjectItemDiscarded() {
	out, diags := s.apply(NewStore(), []string{"tenants"}, `[{"name":"A"}, "B"]`)

	s.Require().Len(diags, 1)
	s.Equal(ReasonNonScalarItem, diags[0].Reason)
	_, ok := out.Get("tenants")
	s.False(ok, "partial arrays are never written")
	s.Contains(s.logs.String(), "fact write discarded")
}

func (s *MapperSuite) TestObjectExactKey() {
	out, diags := s.apply(NewStore(),
		[]string{"property.address_line1", "property.postcode"},
		`{"address_line1":"1 High St","postcode":"AB1 2CD","extra":{"x":1}}`)

	s.Empty(diags)
	s.Equal("1 High St", out.Text("property.address_line1"))
	s.Equal("AB1 2CD", out.Text("property.postcode"))
}

func (s *MapperSuite) TestObjectAliasResolutionOrder() {
	// "city" precedes "locality" in the alias list for town.
	out, diags := s.apply(NewStore(),
		[]string{"property.town", "property.address_line1"},
		`{"locality":"Nowhere","city":"Leeds","line1":"2 Low Rd"}`)

	s.Empty(diags)
	s.Equal("Leeds", out.Text("property.town"))
	s.Equal("2 Low Rd", out.Text("property.address_line1"))
}

func (s *MapperSuite) TestObjectNoSuffixOrSubstringMatching() {
	out, diags := s.apply(NewStore(), []string{"property.postcode"}, `{"property_postcode":"ZZ1 1ZZ"}`)

	s.Require().Len(diags, 1)
	s.Equal(ReasonFieldMissing, diags[0].Reason)
	s.Equal(0, out.Len())
}

func (s *MapperSuite) TestObjectFieldThatIsObjectSkipped() {
	out, diags := s.apply(NewStore(), []string{"landlord.address"}, `{"address":{"line1":"x"}}`)

	s.Require().Len(diags, 1)
	s.Equal(ReasonFieldNotScalar, diags[0].Reason)
	s.Equal(0, out.Len())
}

func (s *MapperSuite) TestInvalidPathRejected() {
	out, diags := s.apply(NewStore(), []string{"", "a..b", "ok.path"}, `"v"`)

	s.Len(diags, 2)
	s.Equal([]string{"ok.path"}, out.Keys())
}

func (s *MapperSuite) TestInputStoreUntouched() {
	base, _ := s.apply(NewStore(), []string{"rent.amount"}, `900`)
	before, err := json.Marshal(base)
	s.Require().NoError(err)

	_, _ = s.apply(base, []string{"rent.amount", "rent.frequency"}, `"monthly"`)

	after, err := json.Marshal(base)
	s.Require().NoError(err)
	s.JSONEq(string(before), string(after))
}

func (s *MapperSuite) TestOverwriteKeepsPosition() {
	st, _ := s.apply(NewStore(), []string{"a"}, `1`)
	st, _ = s.apply(st, []string{"b"}, `2`)
	st, _ = s.apply(st, []string{"a"}, `3`)

	raw, err := json.Marshal(st)
	s.Require().NoError(err)
	s.Equal(`{"a":3,"b":2}`, string(raw))
}

// TestStoreStaysFlatUnderRandomAnswers drives the mapper with randomly shaped
// answers and checks every stored value is a scalar, null or a flat array.
func TestStoreStaysFlatUnderRandomAnswers(t *testing.T) {
	m := NewMapper(WithLogger(slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))))
	paths := []string{
		"property.address_line1", "property.town", "property.postcode",
		"landlord.full_name", "tenants.0.full_name", "notice.grounds", "rent.amount", "address",
	}

	for seed := int64(1); seed <= 200; seed++ {
		rng := rand.New(rand.NewSource(seed))
		store := NewStore()
		for step := 0; step < 25; step++ {
			answer, err := AnswerFromAny(randomJSON(rng, 3))
			require.NoError(t, err)
			dest := []string{paths[rng.Intn(len(paths))], paths[rng.Intn(len(paths))]}
			store, _ = m.Apply(store, dest, answer)
		}

		store.Range(func(key string, v Value) bool {
			switch v.Kind() {
			case KindNull, KindString, KindNumber, KindBool:
			case KindArray:
				for _, it := range v.Items() {
					assert.NotEqual(t, KindArray, it.Kind(), "seed %d key %s", seed, key)
				}
			default:
				t.Fatalf("seed %d: key %s has kind %s", seed, key, v.Kind())
			}
			return true
		})

		raw, err := json.Marshal(store)
		require.NoError(t, err)
		_, err = FromJSON(raw)
		require.NoError(t, err, "persisted store must decode: %s", raw)
	}
}

func randomJSON(rng *rand.Rand, depth int) any {
	choice := rng.Intn(7)
	if depth == 0 {
		choice %= 4
	}
	switch choice {
	case 0:
		return nil
	case 1:
		return "s" + strconv.Itoa(rng.Intn(100))
	case 2:
		return json.Number(strconv.Itoa(rng.Intn(5000)))
	case 3:
		return rng.Intn(2) == 0
	case 4, 5:
		obj := map[string]any{}
		keys := []string{"address_line1", "line1", "city", "town", "postcode", "zip", "name", "full_name", "nested"}
		for i := 0; i < rng.Intn(5); i++ {
			obj[keys[rng.Intn(len(keys))]] = randomJSON(rng, depth-1)
		}
		return obj
	default:
		arr := make([]any, rng.Intn(4))
		for i := range arr {
			arr[i] = randomJSON(rng, depth-1)
		}
		return arr
	}
}
