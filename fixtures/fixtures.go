package fixtures

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-json-experiment/json"
	"github.com/google/uuid"
)

var ErrPageNotFound = errors.New("page not found")

var namespace = uuid.MustParse("6f0d5d8e-0b7c-4f7e-9a43-4f1e2a1f6c11")

type Person struct {
	Guid      string `json:"guid"`
	Index     int    `json:"index"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email"`
	Company   string `json:"company"`
	Age       int    `json:"age"`
}

// Body is a page as served to clients
type Body struct {
	People     []Person `json:"people"`
	TotalCount int      `json:"totalCount"`
}

// Generator builds deterministic people pages, so any page can be served
// without keeping the whole data set around.
type Generator struct {
	Total    int
	PageSize int
	Seed     uint64
}

func NewGenerator(total, pageSize int, seed uint64) (*Generator, error) {
	if total < 0 {
		return nil, fmt.Errorf("total must not be negative")
	}
	if pageSize <= 0 {
		return nil, fmt.Errorf("page size must be positive")
	}
	return &Generator{
		Total:    total,
		PageSize: pageSize,
		Seed:     seed,
	}, nil
}

// Pages is never less than 1: an empty collection still has an empty first
// page telling clients its totalCount is 0.
func (g *Generator) Pages() int {
	return max(1, (g.Total+g.PageSize-1)/g.PageSize)
}

// Person returns the person at position i
func (g *Generator) Person(i int) Person {

	r := rand.New(rand.NewPCG(g.Seed, uint64(i)))

	first := firstNames[r.IntN(len(firstNames))]
	last := lastNames[r.IntN(len(lastNames))]
	company := companies[r.IntN(len(companies))]

	return Person{
		Guid:      uuid.NewSHA1(namespace, []byte(strconv.FormatUint(g.Seed, 10)+"/"+strconv.Itoa(i))).String(),
		Index:     i,
		FirstName: first,
		LastName:  last,
		Email:     strings.ToLower(first+"."+last) + "@" + strings.ToLower(company) + ".com",
		Company:   company,
		Age:       18 + r.IntN(60),
	}
}

// Page returns page n, 1-based
func (g *Generator) Page(n int) (*Body, error) {

	if n < 1 || n > g.Pages() {
		return nil, fmt.Errorf("%w: %d", ErrPageNotFound, n)
	}

	start := (n - 1) * g.PageSize
	end := min(start+g.PageSize, g.Total)

	body := &Body{
		People:     make([]Person, 0, end-start),
		TotalCount: g.Total,
	}
	for i := start; i < end; i++ {
		body.People = append(body.People, g.Person(i))
	}

	return body, nil
}

// Dump writes every page into dir as people_<n>.json
func (g *Generator) Dump(dir string) error {

	err := os.MkdirAll(dir, 0755)
	if err != nil {
		return err
	}

	for n := 1; n <= g.Pages(); n++ {
		body, err := g.Page(n)
		if err != nil {
			return err
		}
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("json encode page %d: %w", n, err)
		}
		err = os.WriteFile(filepath.Join(dir, FileName(n)), data, 0666)
		if err != nil {
			return fmt.Errorf("write page %d: %w", n, err)
		}
	}

	return nil
}

func FileName(page int) string {
	return "people_" + strconv.Itoa(page) + ".json"
}

// ParseFileName extracts the page number from people_<n>.json
func ParseFileName(name string) (int, bool) {
	if !strings.HasPrefix(name, "people_") || !strings.HasSuffix(name, ".json") {
		return 0, false
	}
	n, err := strconv.Atoi(strings.TrimSuffix(strings.TrimPrefix(name, "people_"), ".json"))
	if err != nil {
		return 0, false
	}
	return n, true
}

var firstNames = []string{
	"Ada", "Alan", "Barbara", "Claude", "Dennis", "Donald", "Edsger", "Frances",
	"Grace", "Hedy", "John", "Ken", "Linus", "Margaret", "Niklaus", "Radia",
	"Rob", "Sophie", "Tim", "Whitfield",
}

var lastNames = []string{
	"Allen", "Berners-Lee", "Diffie", "Dijkstra", "Hamilton", "Hopper", "Kay",
	"Knuth", "Lamarr", "Liskov", "Lovelace", "McCarthy", "Perlman", "Pike",
	"Ritchie", "Shannon", "Thompson", "Torvalds", "Turing", "Wirth",
}

var companies = []string{
	"Acme", "Globex", "Initech", "Umbrella", "Hooli", "Stark", "Wayne", "Tyrell",
}
