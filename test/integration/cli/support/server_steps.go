package support

import (
	"bytes"
	"encoding/json"
	"fmt"
	"image/png"
	"net/http"
	"os"
	"strings"

	"github.com/cucumber/godog"

	"github.com/MeKo-Tech/cutout/internal/server"
)

func (testCtx *TestContext) theServerIsRunning() error {
	return testCtx.createTestHTTPServer(server.Config{})
}

func (testCtx *TestContext) theServerIsRunningWithCORSOrigin(origin string) error {
	return testCtx.createTestHTTPServer(server.Config{CORSOrigin: origin})
}

func (testCtx *TestContext) theServerIsRunningWithRequestsPerMinute(n int) error {
	return testCtx.createTestHTTPServer(server.Config{
		RateLimit: server.RateLimitConfig{Enabled: true, RequestsPerMinute: n},
	})
}

func (testCtx *TestContext) iGET(endpoint string) error {
	target, err := testCtx.serverURL(endpoint)
	if err != nil {
		return err
	}
	req, err := http.NewRequest(http.MethodGet, target, nil)
	if err != nil {
		return err
	}
	return testCtx.do(req)
}

func (testCtx *TestContext) iPOSTTheSceneTo(name, endpoint string) error {
	return testCtx.iPOSTTheSceneToWith(name, endpoint, "")
}

// iPOSTTheSceneToWith uploads a scene file with form fields given as "k=v&k=v".
func (testCtx *TestContext) iPOSTTheSceneToWith(name, endpoint, query string) error {
	data, err := os.ReadFile(testCtx.resolve(name))
	if err != nil {
		return err
	}
	fields := map[string]string{}
	for _, kv := range strings.Split(query, "&") {
		if k, v, ok := strings.Cut(kv, "="); ok {
			fields[k] = v
		}
	}
	return testCtx.postMultipart(endpoint, data, fields)
}

func (testCtx *TestContext) iPOSTInvalidDataTo(endpoint string) error {
	return testCtx.postMultipart(endpoint, []byte("not an image"), nil)
}

func (testCtx *TestContext) theResponseStatusShouldBe(expected int) error {
	if testCtx.LastHTTPStatusCode != expected {
		return fmt.Errorf("expected status %d, got %d: %s", expected, testCtx.LastHTTPStatusCode, testCtx.LastHTTPResponse)
	}
	return nil
}

func (testCtx *TestContext) theResponseHeaderShouldBe(name, value string) error {
	if got := testCtx.LastHTTPHeaders[http.CanonicalHeaderKey(name)]; got != value {
		return fmt.Errorf("header %s is %q, want %q", name, got, value)
	}
	return nil
}

func (testCtx *TestContext) theResponseHeaderShouldBeSet(name string) error {
	if testCtx.LastHTTPHeaders[http.CanonicalHeaderKey(name)] == "" {
		return fmt.Errorf("header %s is not set", name)
	}
	return nil
}

func (testCtx *TestContext) theResponseShouldBeATransparentPNG() error {
	img, err := png.Decode(bytes.NewReader(testCtx.LastHTTPResponse))
	if err != nil {
		return fmt.Errorf("response is not a PNG: %w", err)
	}
	b := img.Bounds()
	if _, _, _, a := img.At(b.Min.X, b.Min.Y).RGBA(); a != 0 {
		return fmt.Errorf("corner pixel is not transparent (alpha %d)", a>>8)
	}
	return nil
}

func (testCtx *TestContext) theResponseJSONShouldContain(field string) error {
	var data map[string]any
	if err := json.Unmarshal(testCtx.LastHTTPResponse, &data); err != nil {
		return fmt.Errorf("response is not a JSON object: %w\n%s", err, testCtx.LastHTTPResponse)
	}
	return checkFieldExists(data, field)
}

func (testCtx *TestContext) theResponseShouldContain(text string) error {
	if !strings.Contains(string(testCtx.LastHTTPResponse), text) {
		return fmt.Errorf("response does not contain %q: %s", text, testCtx.LastHTTPResponse)
	}
	return nil
}

// RegisterServerSteps registers HTTP API steps.
func (testCtx *TestContext) RegisterServerSteps(sc *godog.ScenarioContext) {
	sc.Step(`^the server is running$`, testCtx.theServerIsRunning)
	sc.Step(`^the server is running with CORS origin "([^"]*)"$`, testCtx.theServerIsRunningWithCORSOrigin)
	sc.Step(`^the server is running with a limit of (\d+) requests per minute$`, testCtx.theServerIsRunningWithRequestsPerMinute)

	sc.Step(`^I GET "([^"]*)"$`, testCtx.iGET)
	sc.Step(`^I POST "([^"]*)" to "([^"]*)"$`, testCtx.iPOSTTheSceneTo)
	sc.Step(`^I POST "([^"]*)" to "([^"]*)" with "([^"]*)"$`, testCtx.iPOSTTheSceneToWith)
	sc.Step(`^I POST invalid image data to "([^"]*)"$`, testCtx.iPOSTInvalidDataTo)

	sc.Step(`^the response status should be (\d+)$`, testCtx.theResponseStatusShouldBe)
	sc.Step(`^the response header "([^"]*)" should be "([^"]*)"$`, testCtx.theResponseHeaderShouldBe)
	sc.Step(`^the response header "([^"]*)" should be set$`, testCtx.theResponseHeaderShouldBeSet)
	sc.Step(`^the response should be a transparent PNG$`, testCtx.theResponseShouldBeATransparentPNG)
	sc.Step(`^the response JSON should contain "([^"]*)"$`, testCtx.theResponseJSONShouldContain)
	sc.Step(`^the response should contain "([^"]*)"$`, testCtx.theResponseShouldContain)
}
