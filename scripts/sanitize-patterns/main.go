// sanitize-patterns redacts personal data from captured HTML fixtures:
// account numbers in the formats each portal prints, customer names and
// anything testutil.SanitizeText catches.
//
// Usage:
//
//	go run ./scripts/sanitize-patterns -bank=caissedepargne [-dry-run]
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	"github.com/grez-lucas/webbank/internal/scraper/testutil"
)

var sanitizePatterns = map[string][]struct {
	Pattern     *regexp.Regexp
	Replacement string
	Description string
}{
	"creditmutuel": {
		{
			// 10278 01234 00012345601 25
			regexp.MustCompile(`\b\d{5}\s?\d{5}\s?\d{11}\s?\d{2}\b`),
			"10278 00000 00000000000 00",
			"RIB",
		},
		{
			regexp.MustCompile(`(?i)(webid=)\d{6,}`),
			"${1}00012345601",
			"Account id in links",
		},
	},
	"caissedepargne": {
		{
			regexp.MustCompile(`(N°\s*)\d{8,}`),
			"${1}04000000000",
			"Account number",
		},
		{
			regexp.MustCompile(`(?i)(cpt=)\d+`),
			"${1}1",
			"Account index in market links",
		},
	},
}

var commonPatterns = []struct {
	Pattern     *regexp.Regexp
	Replacement string
	Description string
}{
	{
		regexp.MustCompile(`\b(M\.|MME|MLLE|MR)\s+[A-ZÀ-Ý][A-ZÀ-Ý'-]+(\s+[A-ZÀ-Ý][A-Za-zà-ÿ'-]+)?`),
		"$1 DUPONT",
		"Customer name",
	},
	{
		regexp.MustCompile(`(?i)(Bonjour|Bienvenue)\s+[A-ZÀ-Ý][a-zà-ÿ]+(\s+[A-ZÀ-Ý][A-Za-zà-ÿ'-]+)?`),
		"$1 Jean DUPONT",
		"Greeting",
	},
	{
		regexp.MustCompile(`(?i)(token|jeton|sessionid)(["\s:=]+["']?)[a-zA-Z0-9_-]{16,}`),
		"${1}${2}REDACTED",
		"Token",
	},
}

func main() {
	bankCode := flag.String("bank", "", "Bank code: creditmutuel, caissedepargne")
	dryRun := flag.Bool("dry-run", false, "Show what would be changed without modifying files")
	flag.Parse()

	if _, ok := sanitizePatterns[*bankCode]; !ok {
		fmt.Println("Usage: go run ./scripts/sanitize-patterns -bank=creditmutuel|caissedepargne [-dry-run]")
		os.Exit(1)
	}

	fixturesDir := filepath.Join("internal", "scraper", "bank", *bankCode, "testdata", "fixtures")
	files, err := filepath.Glob(filepath.Join(fixturesDir, "*.html"))
	if err != nil || len(files) == 0 {
		fmt.Printf("No HTML files found in %s\n", fixturesDir)
		os.Exit(1)
	}

	for _, file := range files {
		sanitizeFile(file, *bankCode, *dryRun)
	}
	if *dryRun {
		fmt.Println("\nRun without -dry-run to apply changes")
	}
}

func sanitizeFile(path, bankCode string, dryRun bool) {
	content, err := os.ReadFile(path)
	if err != nil {
		fmt.Printf("%s: %v\n", path, err)
		return
	}

	sanitized := string(content)
	var changes []string
	for _, p := range append(sanitizePatterns[bankCode], commonPatterns...) {
		if n := len(p.Pattern.FindAllStringIndex(sanitized, -1)); n > 0 {
			sanitized = p.Pattern.ReplaceAllString(sanitized, p.Replacement)
			changes = append(changes, fmt.Sprintf("  - %s: %d", p.Description, n))
		}
	}
	if s := testutil.SanitizeText(sanitized); s != sanitized {
		sanitized = s
		changes = append(changes, "  - IBAN or card number")
	}

	name := filepath.Base(path)
	if len(changes) == 0 {
		fmt.Printf("%s: clean\n", name)
		return
	}
	fmt.Printf("%s:\n", name)
	for _, c := range changes {
		fmt.Println(c)
	}
	if dryRun {
		return
	}
	if err := os.WriteFile(path, []byte(sanitized), 0o644); err != nil {
		fmt.Printf("  error writing: %v\n", err)
	}
}
