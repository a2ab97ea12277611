// sanitize-har removes credentials, session material and account numbers
// from HAR recordings before they are committed.
//
// Usage:
//
//	go run ./scripts/sanitize-har -bank=creditmutuel                 # every recording of the bank
//	go run ./scripts/sanitize-har -bank=creditmutuel -scenario=login-success
//	go run ./scripts/sanitize-har -input=recording.har.json -output=sanitized.har.json
//	go run ./scripts/sanitize-har -bank=caissedepargne -check        # exit 1 if anything is left to redact
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/grez-lucas/webbank/internal/scraper/testutil"
)

type job struct {
	in, out string
}

func main() {
	bankCode := flag.String("bank", "", "Bank code: creditmutuel, caissedepargne")
	scenario := flag.String("scenario", "", "Scenario name (default: every recording of -bank)")
	inputPath := flag.String("input", "", "Input HAR file path")
	outputPath := flag.String("output", "", "Output HAR file path (defaults to input path)")
	dryRun := flag.Bool("dry-run", false, "List what would be redacted without writing")
	check := flag.Bool("check", false, "Fail when a recording still holds sensitive values")
	flag.Parse()

	jobs, err := plan(*bankCode, *scenario, *inputPath, *outputPath)
	if err != nil {
		fmt.Println(err)
		flag.Usage()
		os.Exit(1)
	}

	dirty := 0
	for _, j := range jobs {
		n, err := sanitize(j, *dryRun || *check)
		if err != nil {
			fmt.Printf("%s: %v\n", j.in, err)
			os.Exit(1)
		}
		if n > 0 {
			dirty++
		}
	}

	if *check && dirty > 0 {
		fmt.Printf("%d recording(s) need sanitizing\n", dirty)
		os.Exit(1)
	}
}

// plan lists the files to sanitize from the flags.
func plan(bankCode, scenario, input, output string) ([]job, error) {
	if input != "" {
		if output == "" {
			output = input
		}
		return []job{{input, output}}, nil
	}
	if bankCode == "" {
		return nil, fmt.Errorf("either -bank or -input is required")
	}

	dir := filepath.Join("internal", "scraper", "bank", bankCode, "testdata", "recordings")
	if scenario != "" {
		path := filepath.Join(dir, scenario+".har.json")
		return []job{{path, path}}, nil
	}
	paths, err := filepath.Glob(filepath.Join(dir, "*.har.json"))
	if err != nil {
		return nil, err
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("no recordings in %s", dir)
	}
	jobs := make([]job, len(paths))
	for i, p := range paths {
		jobs[i] = job{p, p}
	}
	return jobs, nil
}

// sanitize redacts one recording and reports how many values changed.
func sanitize(j job, readOnly bool) (int, error) {
	har, err := testutil.LoadHAR(j.in)
	if err != nil {
		return 0, err
	}
	sanitized := testutil.SanitizeHAR(har)
	changes := diff(har, sanitized)

	fmt.Printf("%s: %d entries, %d values to redact\n", j.in, len(har.Entries), len(changes))
	if readOnly || len(changes) == 0 {
		for _, c := range changes {
			fmt.Println("  " + c)
		}
		return len(changes), nil
	}

	if err := testutil.SaveHAR(j.out, sanitized); err != nil {
		return 0, err
	}
	fmt.Printf("  saved %s\n", j.out)
	return len(changes), nil
}

// diff describes every value SanitizeHAR changed.
func diff(original, sanitized *testutil.HARLog) []string {
	var out []string
	for i, orig := range original.Entries {
		san := sanitized.Entries[i]
		where := fmt.Sprintf("#%d %s %s:", i+1, orig.Request.Method, truncateURL(orig.Request.URL))

		if orig.Request.URL != san.Request.URL {
			out = append(out, where+" query parameters")
		}
		for j, h := range orig.Request.Headers {
			if h.Value != san.Request.Headers[j].Value {
				out = append(out, where+" request header "+h.Name)
			}
		}
		if orig.Request.Body != san.Request.Body {
			out = append(out, where+" request body")
		}
		for j, h := range orig.Response.Headers {
			if h.Value != san.Response.Headers[j].Value {
				out = append(out, where+" response header "+h.Name)
			}
		}
		if orig.Response.Content.Text != san.Response.Content.Text {
			out = append(out, where+" response body")
		}
	}
	return out
}

func truncateURL(url string) string {
	if len(url) > 80 {
		return url[:77] + "..."
	}
	return url
}
