// capture-fixtures walks a human through a bank portal in a visible browser
// and saves each page as a flattened, sanitized HTML fixture plus a
// screenshot.
//
// Usage:
//
//	go run ./scripts/capture-fixtures -bank=creditmutuel
//	go run ./scripts/capture-fixtures -bank=caissedepargne -frame=iframe#clavier
package main

import (
	"bufio"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/stealth"
	browserutil "github.com/grez-lucas/webbank/internal/scraper/browser"
	"github.com/grez-lucas/webbank/internal/scraper/testutil"
)

type pageCapture struct {
	Name         string
	Instructions string
}

// Pages to capture for each bank, named after the fixtures the tests load.
var capturePages = map[string][]pageCapture{
	"creditmutuel": {
		{"login", "Open the login page (don't log in yet)"},
		{"login_error", "Submit a wrong password"},
		{"user_space", "Log in with valid credentials and wait for the personal space"},
		{"accounts", "Open 'Situation financière'"},
		{"operations_p1", "Open the history of the checking account"},
		{"operations_p2", "Follow 'Page suivante' at the bottom of the history"},
		{"no_operations", "Open the history of an account without operations (or skip)"},
		{"card_operations", "Open the pending card operations ('En-cours carte')"},
		{"transfer_form", "Open 'Virements' > 'Virement entre vos comptes'"},
		{"transfer_confirm", "Fill a small transfer and submit, stop on the confirmation page"},
		{"transfer_insufficient", "Submit a transfer larger than the balance (or skip)"},
	},
	"caissedepargne": {
		{"login_step1", "Open the login popup (don't log in yet)"},
		{"login_nuser", "Submit the identifier, stop on the account number form"},
		{"login_password", "Or stop on the personal keypad form (or skip)"},
		{"login_error", "Submit a wrong password"},
		{"accounts", "Log in with valid credentials and wait for the account synthesis"},
		{"history_p1", "Open the history of the checking account"},
		{"history_p2", "Follow 'Page suivante'"},
		{"card_history", "Open the deferred card history"},
		{"contracts", "Open the summary of a life insurance account"},
		{"bourse", "Open a PEA or securities account"},
		{"portfolio", "Continue to the market partner's portfolio page"},
		{"market_error", "Open a market account with no position (or skip)"},
		{"extranet_home", "Open the life insurance partner's home page"},
		{"repartition", "Open 'Consultation' > 'Répartition'"},
	},
}

func main() {
	bankCode := flag.String("bank", "", "Bank code: creditmutuel, caissedepargne")
	outputDir := flag.String("output", "", "Output directory (default: internal/scraper/bank/{bank}/testdata/fixtures)")
	chromeBin := flag.String("chrome", "", "Chrome binary (default: let rod find or download one)")
	frameSelector := flag.String("frame", "", "Also save the document of this iframe as {name}_frame.html")
	flag.Parse()

	pages, ok := capturePages[*bankCode]
	if !ok {
		fmt.Println("Usage: go run ./scripts/capture-fixtures -bank=creditmutuel|caissedepargne")
		os.Exit(1)
	}

	outDir := *outputDir
	if outDir == "" {
		outDir = filepath.Join("internal", "scraper", "bank", *bankCode, "testdata", "fixtures")
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		fmt.Printf("Error creating directory: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Bank:   %s\n", strings.ToUpper(*bankCode))
	fmt.Printf("Output: %s\n\n", outDir)

	l := launcher.New().
		Headless(false).
		Set("disable-blink-features", "AutomationControlled").
		Set("exclude-switches", "enable-automation").
		Set("no-first-run").
		Set("no-default-browser-check").
		Set("window-size", "1920,1080")
	if *chromeBin != "" {
		l = l.Bin(*chromeBin)
	}

	browser := rod.New().ControlURL(l.MustLaunch()).MustConnect()
	defer browser.MustClose()

	page := stealth.MustPage(browser)
	reader := bufio.NewReader(os.Stdin)

	fmt.Println("A browser window has opened. Follow the prompts and press ENTER")
	fmt.Println("after each step, 'skip' to skip a page or 'quit' to stop.")
	fmt.Println()

	for _, capture := range pages {
		fmt.Printf("%s.html: %s\n", capture.Name, capture.Instructions)
		fmt.Print("  ENTER when ready (or 'skip'/'quit'): ")

		input, _ := reader.ReadString('\n')
		input = strings.TrimSpace(strings.ToLower(input))
		if input == "quit" {
			break
		}
		if input == "skip" {
			fmt.Printf("  skipped %s\n\n", capture.Name)
			continue
		}

		// Portal pages navigate by full reloads, so the page to capture is
		// whichever tab the user ended up on.
		if tabs, err := browser.Pages(); err == nil && len(tabs) > 0 {
			page = tabs.First()
		}

		if err := capturePage(page, outDir, capture.Name, *frameSelector); err != nil {
			fmt.Printf("  error: %v\n\n", err)
			continue
		}
		fmt.Printf("  url: %s\n\n", page.MustInfo().URL)
	}

	saveMetadata(outDir, *bankCode)

	fmt.Println("Capture complete. Account numbers and IBANs were redacted, but")
	fmt.Println("check names and addresses before committing, or run:")
	fmt.Println("  go run ./scripts/sanitize-patterns -bank=" + *bankCode)
}

func capturePage(page *rod.Page, outDir, name, frameSelector string) error {
	if err := browserutil.WaitForIFrames(page); err != nil {
		fmt.Printf("  warning: %v\n", err)
	}
	time.Sleep(time.Second)

	// Screenshot before Flatten rewrites the DOM.
	if buf, err := page.Screenshot(false, nil); err == nil {
		path := filepath.Join(outDir, name+".png")
		if err := os.WriteFile(path, buf, 0o644); err != nil {
			fmt.Printf("  warning: save screenshot: %v\n", err)
		}
	}

	if frameSelector != "" {
		if err := captureFrame(page, outDir, name, frameSelector); err != nil {
			fmt.Printf("  warning: frame %s: %v\n", frameSelector, err)
		}
	}

	flat, err := browserutil.Flatten(page)
	if err != nil {
		return err
	}
	if flat.Frames > 0 || flat.Shadows > 0 {
		fmt.Printf("  inlined %d frame(s) and %d shadow root(s)\n", flat.Frames, flat.Shadows)
	}

	path := filepath.Join(outDir, name+".html")
	if err := os.WriteFile(path, []byte(testutil.SanitizeText(flat.HTML)), 0o644); err != nil {
		return fmt.Errorf("save HTML: %w", err)
	}
	fmt.Printf("  saved %s\n", path)
	return nil
}

// captureFrame saves the raw document of one iframe, such as a virtual
// keypad served from another origin that Flatten cannot inline.
func captureFrame(page *rod.Page, outDir, name, selector string) error {
	frame, err := browserutil.GetIFrameBySelector(page.Timeout(5*time.Second), selector)
	if err != nil {
		return err
	}
	html, err := frame.HTML()
	if err != nil {
		return err
	}
	path := filepath.Join(outDir, name+"_frame.html")
	return os.WriteFile(path, []byte(testutil.SanitizeText(html)), 0o644)
}

func saveMetadata(outDir, bankCode string) {
	metadata := fmt.Sprintf(`# Fixture Metadata
bank: %s
captured_at: %s
captured_by: %s

## Frames and shadow roots

Same-origin frames are inlined as

    <div data-captured-frame="name" data-frame-src="...">...</div>

and open shadow roots are appended to their host as

    <div data-shadow-root="tag">...</div>

so a fixture parses as one document. Cross-origin frames carry a
data-frame-error attribute instead; capture them with -frame.

## Notes
- IBANs and card numbers are redacted at capture time
- Names, addresses and labels are not
- Re-run capture when tests start failing against the live site
`, bankCode, time.Now().Format(time.RFC3339), os.Getenv("USER"))

	_ = os.WriteFile(filepath.Join(outDir, "README.md"), []byte(metadata), 0o644)
}
