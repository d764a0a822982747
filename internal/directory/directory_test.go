package directory

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func load(t *testing.T) *Directory {
	t.Helper()
	d, err := Load()
	require.NoError(t, err)
	return d
}

func TestLoadEmbeddedDataset(t *testing.T) {
	d := load(t)
	assert.Equal(t, 29, d.Len())

	doc, ok := d.ByID(1)
	require.True(t, ok)
	assert.Equal(t, "Dr. Yasmin Abaza, MD", doc.Name)
	assert.Equal(t, 4.9, doc.Rating)
	assert.Contains(t, doc.DiseaseExpertise, "Aplastic Anemia")

	_, ok = d.ByID(999)
	assert.False(t, ok)
}

func TestSearchPagination(t *testing.T) {
	d := load(t)

	first := d.Search(Query{})
	assert.Equal(t, 29, first.Total)
	assert.Equal(t, 5, first.TotalPages)
	assert.Len(t, first.Doctors, 6)
	assert.Equal(t, 1, first.Page)
	assert.Equal(t, 1, first.Doctors[0].ID)

	last := d.Search(Query{Page: 5})
	assert.Len(t, last.Doctors, 5)

	beyond := d.Search(Query{Page: 9})
	assert.NotNil(t, beyond.Doctors)
	assert.Empty(t, beyond.Doctors)

	big := d.Search(Query{PageSize: 1000})
	assert.Equal(t, MaxPageSize, big.PageSize)
	assert.Len(t, big.Doctors, 29)
}

func TestSearchHugePageIsEmpty(t *testing.T) {
	d := load(t)

	for _, q := range []Query{
		{Page: math.MaxInt},
		{Page: math.MaxInt, PageSize: MaxPageSize},
		{Page: math.MaxInt/DefaultPageSize + 2},
	} {
		got := d.Search(q)
		assert.Equal(t, q.Page, got.Page)
		assert.NotNil(t, got.Doctors)
		assert.Empty(t, got.Doctors)
		assert.Equal(t, 29, got.Total)
	}
}

func TestSearchTermMatchesAnyField(t *testing.T) {
	d := load(t)

	byName := d.Search(Query{Term: "BRODSKY"})
	require.Equal(t, 1, byName.Total)
	assert.Equal(t, 29, byName.Doctors[0].ID)

	byLocation := d.Search(Query{Term: "chicago"})
	assert.GreaterOrEqual(t, byLocation.Total, 1)

	byExpertise := d.Search(Query{Term: "aplastic"})
	for _, doc := range byExpertise.Doctors {
		assert.True(t, doc.matches("aplastic"))
	}
	assert.Greater(t, byExpertise.Total, 1)

	none := d.Search(Query{Term: "dermatology"})
	assert.Equal(t, 0, none.Total)
	assert.Equal(t, 0, none.TotalPages)
}

func TestSearchSpecialty(t *testing.T) {
	d := load(t)

	all := d.Search(Query{Specialty: AllSpecialties})
	assert.Equal(t, 29, all.Total)

	hem := d.Search(Query{Specialty: "Hematology", PageSize: 50})
	assert.Equal(t, 13, hem.Total)
	for _, doc := range hem.Doctors {
		assert.Equal(t, "Hematology", doc.Specialty)
	}

	assert.Equal(t, AllSpecialties, all.Specialties[0])
	assert.Contains(t, all.Specialties, "Transplant Medicine")
}

func TestParseRejectsInvalidYAML(t *testing.T) {
	_, err := Parse([]byte("- id: [unclosed"))
	assert.Error(t, err)
}
