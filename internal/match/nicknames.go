package match

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// NicknameTable is an injected, loaded-at-construction repository of
// nickname equivalence groups. Matching logic stays a pure function of
// (query, candidate set, table); there is no package-level mutable state.
type NicknameTable struct {
	// groups maps each name to every equivalence group it belongs to.
	// Shared nicknames ("sam", "pat") carry several indexes.
	groups map[string][]int
}

// nicknameFile is the YAML shape of an external nickname table.
type nicknameFile struct {
	Groups [][]string `yaml:"groups"`
}

// defaultNicknameGroups covers the common English given-name equivalences.
// Each inner slice is one equivalence class.
var defaultNicknameGroups = [][]string{
	{"robert", "bob", "bobby", "rob", "robbie", "bert"},
	{"william", "will", "bill", "billy", "willie", "liam"},
	{"michael", "mike", "mikey", "mick", "mickey"},
	{"james", "jim", "jimmy", "jamie"},
	{"john", "jack", "johnny", "jon"},
	{"richard", "rick", "ricky", "dick", "rich"},
	{"christopher", "chris", "topher", "kit"},
	{"joseph", "joe", "joey", "jos"},
	{"thomas", "tom", "tommy"},
	{"charles", "charlie", "chuck", "chas"},
	{"daniel", "dan", "danny"},
	{"matthew", "matt", "matty"},
	{"anthony", "tony", "ant"},
	{"donald", "don", "donny"},
	{"steven", "stephen", "steve", "stevie"},
	{"andrew", "andy", "drew"},
	{"joshua", "josh"},
	{"kenneth", "ken", "kenny"},
	{"edward", "ed", "eddie", "ted", "teddy", "ned"},
	{"ronald", "ron", "ronnie"},
	{"timothy", "tim", "timmy"},
	{"jason", "jay"},
	{"jeffrey", "jeff"},
	{"gregory", "greg"},
	{"nicholas", "nick", "nicky"},
	{"alexander", "alex", "al", "xander", "sandy"},
	{"benjamin", "ben", "benny", "benji"},
	{"samuel", "sam", "sammy"},
	{"frederick", "fred", "freddie"},
	{"lawrence", "larry"},
	{"raymond", "ray"},
	{"leonard", "leo", "len", "lenny"},
	{"eugene", "gene"},
	{"theodore", "theo", "ted"},
	{"patrick", "pat", "paddy"},
	{"peter", "pete"},
	{"david", "dave", "davey"},
	{"douglas", "doug"},
	{"zachary", "zach", "zack"},
	{"elizabeth", "liz", "lizzy", "beth", "betty", "eliza", "libby"},
	{"margaret", "maggie", "meg", "peggy", "marge", "margo"},
	{"katherine", "catherine", "kate", "katie", "kathy", "cathy", "kat"},
	{"jennifer", "jen", "jenny"},
	{"jessica", "jess", "jessie"},
	{"patricia", "pat", "patty", "tricia", "trish"},
	{"susan", "sue", "susie", "suzy"},
	{"deborah", "debbie", "deb"},
	{"barbara", "barb", "barbie"},
	{"rebecca", "becky", "becca"},
	{"victoria", "vicky", "tori"},
	{"kimberly", "kim"},
	{"cynthia", "cindy"},
	{"sandra", "sandy"},
	{"pamela", "pam"},
	{"christina", "christine", "chris", "chrissy", "tina"},
	{"stephanie", "steph"},
	{"samantha", "sam"},
	{"alexandra", "alex", "lexi", "sandra"},
	{"natalie", "nat"},
	{"abigail", "abby", "gail"},
	{"amanda", "mandy"},
	{"melissa", "mel", "missy"},
	{"nancy", "nan"},
	{"dorothy", "dot", "dottie"},
	{"florence", "flo"},
	{"frances", "fran", "fanny"},
	{"gabrielle", "gabby"},
	{"isabella", "bella", "izzy"},
	{"josephine", "jo", "josie"},
	{"veronica", "ronnie"},
	{"virginia", "ginny"},
}

// NewNicknameTable builds a table from explicit equivalence groups.
func NewNicknameTable(groups [][]string) *NicknameTable {
	t := &NicknameTable{groups: make(map[string][]int)}
	for i, grp := range groups {
		for _, name := range grp {
			t.groups[name] = append(t.groups[name], i)
		}
	}
	return t
}

// DefaultNicknameTable returns a table built from the built-in groups.
func DefaultNicknameTable() *NicknameTable {
	return NewNicknameTable(defaultNicknameGroups)
}

// LoadNicknameTable reads a YAML nickname file and builds a table from it.
// The file format is:
//
//	groups:
//	  - [robert, bob, rob]
//	  - [william, bill, will]
func LoadNicknameTable(path string) (*NicknameTable, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("nicknames: failed to read %s: %w", path, err)
	}

	var file nicknameFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("nicknames: failed to parse %s: %w", path, err)
	}

	if len(file.Groups) == 0 {
		return nil, fmt.Errorf("nicknames: %s contains no groups", path)
	}

	return NewNicknameTable(file.Groups), nil
}

// Equivalent reports whether two lower-cased given names belong to the same
// equivalence group. A name is always equivalent to itself.
func (t *NicknameTable) Equivalent(a, b string) bool {
	if a == b {
		return a != ""
	}
	for _, ga := range t.groups[a] {
		for _, gb := range t.groups[b] {
			if ga == gb {
				return true
			}
		}
	}
	return false
}

// Size returns the number of names in the table.
func (t *NicknameTable) Size() int {
	return len(t.groups)
}
