// Package directory serves the searchable list of specialist doctors.
package directory

import (
	_ "embed"
	"fmt"
	"strings"

	"github.com/samber/lo"
	"gopkg.in/yaml.v3"
)

// DefaultPageSize is the number of doctors per page.
const DefaultPageSize = 6

// MaxPageSize caps caller-chosen page sizes.
const MaxPageSize = 50

// AllSpecialties disables the specialty filter.
const AllSpecialties = "all"

//go:embed doctors.yaml
var doctorsYAML []byte

// Doctor is one directory listing.
type Doctor struct {
	ID               int      `yaml:"id" json:"id"`
	Name             string   `yaml:"name" json:"name"`
	Institution      string   `yaml:"institution" json:"institution"`
	Location         string   `yaml:"location" json:"location"`
	DiseaseExpertise []string `yaml:"diseaseExpertise" json:"diseaseExpertise"`
	Designation      string   `yaml:"designation" json:"designation"`
	Specialty        string   `yaml:"specialty" json:"specialty"`
	Description      string   `yaml:"description" json:"description"`
	Rating           float64  `yaml:"rating" json:"rating"`
	Image            string   `yaml:"image" json:"image"`
	Experience       string   `yaml:"experience" json:"experience"`
}

// Query selects a page of doctors.
type Query struct {
	Term      string
	Specialty string
	Page      int
	PageSize  int
}

// Page is one page of search results.
type Page struct {
	Doctors     []Doctor `json:"doctors"`
	Total       int      `json:"total"`
	Page        int      `json:"page"`
	PageSize    int      `json:"pageSize"`
	TotalPages  int      `json:"totalPages"`
	Specialties []string `json:"specialties"`
}

// Directory is an immutable, in-memory doctor list.
type Directory struct {
	doctors     []Doctor
	specialties []string
}

// Load parses the embedded dataset.
func Load() (*Directory, error) {
	return Parse(doctorsYAML)
}

// Parse builds a Directory from YAML.
func Parse(data []byte) (*Directory, error) {
	var doctors []Doctor
	if err := yaml.Unmarshal(data, &doctors); err != nil {
		return nil, fmt.Errorf("parse doctor directory: %w", err)
	}
	specialties := append([]string{AllSpecialties}, lo.Uniq(lo.Map(doctors, func(d Doctor, _ int) string {
		return d.Specialty
	}))...)
	return &Directory{doctors: doctors, specialties: specialties}, nil
}

// Len returns the number of doctors.
func (d *Directory) Len() int {
	return len(d.doctors)
}

func (doc Doctor) matches(term string) bool {
	if term == "" {
		return true
	}
	contains := func(s string) bool { return strings.Contains(strings.ToLower(s), term) }
	return contains(doc.Name) ||
		contains(doc.Specialty) ||
		contains(doc.Institution) ||
		contains(doc.Location) ||
		lo.SomeBy(doc.DiseaseExpertise, contains)
}

// Search filters by a case-insensitive term and an exact specialty, then
// returns the requested page. Pages start at 1; out-of-range pages are empty.
func (d *Directory) Search(q Query) Page {
	term := strings.ToLower(strings.TrimSpace(q.Term))
	specialty := strings.TrimSpace(q.Specialty)

	matched := lo.Filter(d.doctors, func(doc Doctor, _ int) bool {
		if specialty != "" && specialty != AllSpecialties && doc.Specialty != specialty {
			return false
		}
		return doc.matches(term)
	})

	size := q.PageSize
	if size <= 0 {
		size = DefaultPageSize
	}
	if size > MaxPageSize {
		size = MaxPageSize
	}
	page := q.Page
	if page <= 0 {
		page = 1
	}

	// Compare by page count so huge page numbers cannot overflow the offset.
	var doctors []Doctor
	if page-1 < (len(matched)+size-1)/size {
		start := (page - 1) * size
		doctors = matched[start:min(start+size, len(matched))]
	}
	if doctors == nil {
		doctors = []Doctor{}
	}

	return Page{
		Doctors:     doctors,
		Total:       len(matched),
		Page:        page,
		PageSize:    size,
		TotalPages:  (len(matched) + size - 1) / size,
		Specialties: d.specialties,
	}
}

// ByID returns the doctor with id.
func (d *Directory) ByID(id int) (Doctor, bool) {
	return lo.Find(d.doctors, func(doc Doctor) bool { return doc.ID == id })
}
