package httpapi_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"os/exec"
	"strings"
	"testing"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/MarkoPoloResearchLab/testimonio/internal/model"
	"github.com/MarkoPoloResearchLab/testimonio/internal/storage"
	"github.com/MarkoPoloResearchLab/testimonio/internal/widget"
)

const (
	runtimePageRoutePath                 = "/runtime-integration"
	runtimePageContentType               = "text/html; charset=utf-8"
	runtimePageHTMLTemplate              = "<!doctype html><html lang=\"es\"><head><meta charset=\"utf-8\"><title>Runtime Integration</title></head><body><div data-testimonio-widget=\"%s\"></div><script src=\"/api/embed/%s\"></script></body></html>"
	runtimeMissingMountHTMLTemplate      = "<!doctype html><html lang=\"es\"><head><meta charset=\"utf-8\"><title>Runtime Integration</title></head><body><p id=\"host\">host content</p><script src=\"/api/embed/%s\"></script></body></html>"
	runtimeDoubleLoadHTMLTemplate        = "<!doctype html><html lang=\"es\"><head><meta charset=\"utf-8\"><title>Runtime Integration</title></head><body><div data-testimonio-widget=\"%s\"></div><script src=\"/api/embed/%s\"></script><script src=\"/api/embed/%s\"></script></body></html>"
	runtimeMountSelector                 = "[data-testimonio-widget]"
	runtimeWidgetRootSelector            = ".tm-widget"
	runtimeNextButtonSelector            = ".tm-nav-next"
	runtimeThirdDotSelector              = ".tm-dot[data-index=\"2\"]"
	integrationTestTimeout               = 20 * time.Second
	headlessBrowserSkipReason            = "chromedp headless browser not available"
	headlessBrowserLocateErrorMessage    = "locate headless browser executable"
	headlessBrowserEnvironmentChromedp   = "CHROMEDP_BROWSER"
	headlessBrowserEnvironmentChromePath = "CHROME_PATH"
)

var headlessBrowserExecutableNames = []string{
	"chromium",
	"chromium-browser",
	"google-chrome",
	"google-chrome-stable",
	"chrome",
	"headless-shell",
}

var errHeadlessBrowserNotFound = errors.New("headless browser executable not found")

type runtimeState struct {
	Index    int  `json:"index"`
	Count    int  `json:"count"`
	Autoplay bool `json:"autoplay"`
}

func serveRuntimePage(testingT *testing.T, harness apiHarness, pageHTML string) string {
	testingT.Helper()
	server := httptest.NewServer(harness.router)
	testingT.Cleanup(server.Close)
	harness.router.GET(runtimePageRoutePath, func(ginContext *gin.Context) {
		ginContext.Data(http.StatusOK, runtimePageContentType, []byte(pageHTML))
	})
	return server.URL + runtimePageRoutePath
}

func seedCarousel(testingT *testing.T, harness apiHarness, count int) model.Widget {
	testingT.Helper()
	project := harness.fixtures.Project(harness.fixtures.User("PRO").ID)
	storedWidget := harness.fixtures.Widget(project.ID, "CAROUSEL", true)
	for index := 0; index < count; index++ {
		harness.fixtures.Testimonial(project.ID, model.TestimonialStatusApproved, fmt.Sprintf("Testimonio numero %d", index+1), testHarnessClock.Add(time.Duration(index)*time.Minute))
	}
	return storedWidget
}

// seedVariant stores a widget of the variant with count approved testimonials whose text and author exercise escaping and case mapping.
func seedVariant(testingT *testing.T, harness apiHarness, variant string, count int) model.Widget {
	testingT.Helper()
	project := harness.fixtures.Project(harness.fixtures.User("PRO").ID)
	storedWidget := harness.fixtures.Widget(project.ID, variant, true)
	for index := 0; index < count; index++ {
		stored := harness.fixtures.Testimonial(project.ID, model.TestimonialStatusApproved, fmt.Sprintf(`<b>&'"%d</b>`, index), testHarnessClock.Add(time.Duration(index)*time.Minute))
		require.NoError(testingT, harness.database.Model(&model.Testimonial{}).Where("id = ?", stored.ID).Update("author_name", "ßara Número"+fmt.Sprint(index)).Error)
	}
	return storedWidget
}

// browserSerializedMarkup parses markup into a detached element and returns the browser's own serialization of it.
func browserSerializedMarkup(testingT *testing.T, browserContext context.Context, markup string) string {
	testingT.Helper()
	markupLiteral, encodeErr := json.Marshal(markup)
	require.NoError(testingT, encodeErr)
	var serialized string
	script := fmt.Sprintf(`(function(markup){ var element = document.createElement("div"); element.innerHTML = markup; return element.innerHTML; })(%s)`, markupLiteral)
	require.NoError(testingT, chromedp.Run(browserContext, chromedp.Evaluate(script, &serialized)))
	return serialized
}

func runtimeStateScript(widgetID string) string {
	return fmt.Sprintf(`window.TestimonioWidgets[%q].state()`, widgetID)
}

type runtimeSnapshot struct {
	Before int    `json:"before"`
	After  int    `json:"after"`
	Markup string `json:"markup"`
}

// runtimeInteractionScript clicks inside the mount element and reads the cursor and markup in one synchronous step so autoplay cannot interleave.
func runtimeInteractionScript(widgetID string, selector string) string {
	return fmt.Sprintf(`(function(widgetID, selector){
		var handle = window.TestimonioWidgets[widgetID];
		var mount = document.querySelector(%q);
		var before = handle.state().index;
		if (selector) { mount.querySelector(selector).click(); }
		return { before: before, after: handle.state().index, markup: mount.innerHTML };
	})(%q, %q)`, runtimeMountSelector, widgetID, selector)
}

func TestRuntimeMarkupMatchesServerRender(testingT *testing.T) {
	browserContext := buildHeadlessBrowserContext(testingT)
	harness := buildAPIHarness(testingT)
	storedWidget := seedCarousel(testingT, harness, 3)
	pageURL := serveRuntimePage(testingT, harness, fmt.Sprintf(runtimePageHTMLTemplate, storedWidget.ID, storedWidget.ID))

	config, loadErr := storage.NewSnapshotStore(harness.database, widget.LocaleSpanish).LoadSnapshot(context.Background(), storedWidget.ID)
	require.NoError(testingT, loadErr)
	count := len(config.Testimonials)

	var initial runtimeSnapshot
	var advanced runtimeSnapshot
	var selected runtimeSnapshot
	runErr := chromedp.Run(browserContext,
		chromedp.Navigate(pageURL),
		chromedp.WaitReady(runtimeWidgetRootSelector, chromedp.ByQuery),
		chromedp.Evaluate(runtimeInteractionScript(storedWidget.ID, ""), &initial),
		chromedp.Evaluate(runtimeInteractionScript(storedWidget.ID, runtimeNextButtonSelector), &advanced),
		chromedp.Evaluate(runtimeInteractionScript(storedWidget.ID, runtimeThirdDotSelector), &selected),
	)
	require.NoError(testingT, runErr)

	require.Equal(testingT, widget.Render(config, widget.CarouselState{Index: initial.After, Count: count}), initial.Markup)

	require.Equal(testingT, widget.Reduce(widget.CarouselState{Index: advanced.Before, Count: count}, widget.Next()).Index, advanced.After)
	require.Equal(testingT, widget.Render(config, widget.CarouselState{Index: advanced.After, Count: count}), advanced.Markup)

	require.Equal(testingT, 2, selected.After)
	require.Equal(testingT, widget.Render(config, widget.CarouselState{Index: 2, Count: count}), selected.Markup)

	var state runtimeState
	require.NoError(testingT, chromedp.Run(browserContext, chromedp.Evaluate(runtimeStateScript(storedWidget.ID), &state)))
	require.Equal(testingT, count, state.Count)
	require.True(testingT, state.Autoplay)
}

func TestRuntimeMarkupMatchesServerRenderForEveryVariant(testingT *testing.T) {
	testCases := []struct {
		name             string
		variant          string
		count            int
		expectedAutoplay bool
	}{
		{name: "carousel", variant: "CAROUSEL", count: 3, expectedAutoplay: true},
		{name: "grid", variant: "GRID", count: 4, expectedAutoplay: false},
		{name: "wall", variant: "WALL", count: 3, expectedAutoplay: false},
		{name: "single", variant: "SINGLE", count: 2, expectedAutoplay: false},
		{name: "unknown falls back to carousel", variant: "FOO", count: 2, expectedAutoplay: true},
		{name: "empty grid", variant: "GRID", count: 0, expectedAutoplay: false},
		{name: "empty carousel", variant: "CAROUSEL", count: 0, expectedAutoplay: false},
	}

	for _, testCase := range testCases {
		testCase := testCase
		testingT.Run(testCase.name, func(subTestT *testing.T) {
			browserContext := buildHeadlessBrowserContext(subTestT)
			harness := buildAPIHarness(subTestT)
			storedWidget := seedVariant(subTestT, harness, testCase.variant, testCase.count)
			pageURL := serveRuntimePage(subTestT, harness, fmt.Sprintf(runtimePageHTMLTemplate, storedWidget.ID, storedWidget.ID))

			config, loadErr := storage.NewSnapshotStore(harness.database, widget.LocaleSpanish).LoadSnapshot(context.Background(), storedWidget.ID)
			require.NoError(subTestT, loadErr)
			require.Len(subTestT, config.Testimonials, testCase.count)

			var snapshot runtimeSnapshot
			var state runtimeState
			var navigationCount int
			runErr := chromedp.Run(browserContext,
				chromedp.Navigate(pageURL),
				chromedp.WaitReady(runtimeWidgetRootSelector, chromedp.ByQuery),
				chromedp.Evaluate(runtimeInteractionScript(storedWidget.ID, ""), &snapshot),
				chromedp.Evaluate(runtimeStateScript(storedWidget.ID), &state),
				chromedp.Evaluate(`document.querySelectorAll(".tm-nav, .tm-dot").length`, &navigationCount),
			)
			require.NoError(subTestT, runErr)

			serverMarkup := widget.Render(config, widget.CarouselState{Index: snapshot.After, Count: testCase.count})
			require.Equal(subTestT, browserSerializedMarkup(subTestT, browserContext, serverMarkup), snapshot.Markup)
			require.Equal(subTestT, testCase.expectedAutoplay, state.Autoplay)
			require.Equal(subTestT, testCase.count, state.Count)
			if !testCase.expectedAutoplay {
				require.Zero(subTestT, navigationCount)
			}
			if testCase.count > 0 {
				require.Contains(subTestT, serverMarkup, "&lt;b&gt;&amp;&#39;&#34;0&lt;/b&gt;")
				require.Contains(subTestT, snapshot.Markup, `&lt;b&gt;&amp;'"0&lt;/b&gt;`)
				require.Contains(subTestT, snapshot.Markup, `<div class="tm-avatar">SN</div>`)
			}
		})
	}
}

func TestRuntimeSingleTestimonialHasNoControlsOrTimer(testingT *testing.T) {
	browserContext := buildHeadlessBrowserContext(testingT)
	harness := buildAPIHarness(testingT)
	storedWidget := seedCarousel(testingT, harness, 1)
	pageURL := serveRuntimePage(testingT, harness, fmt.Sprintf(runtimePageHTMLTemplate, storedWidget.ID, storedWidget.ID))

	var navigationCount int
	var state runtimeState
	runErr := chromedp.Run(browserContext,
		chromedp.Navigate(pageURL),
		chromedp.WaitReady(runtimeWidgetRootSelector, chromedp.ByQuery),
		chromedp.Evaluate(`document.querySelectorAll(".tm-nav, .tm-dot").length`, &navigationCount),
		chromedp.Evaluate(runtimeStateScript(storedWidget.ID), &state),
	)
	require.NoError(testingT, runErr)
	require.Zero(testingT, navigationCount)
	require.Equal(testingT, runtimeState{Index: 0, Count: 1, Autoplay: false}, state)
}

func TestRuntimeIgnoresMissingMountElement(testingT *testing.T) {
	browserContext := buildHeadlessBrowserContext(testingT)
	harness := buildAPIHarness(testingT)
	storedWidget := seedCarousel(testingT, harness, 2)
	pageURL := serveRuntimePage(testingT, harness, fmt.Sprintf(runtimeMissingMountHTMLTemplate, storedWidget.ID))

	var hostText string
	var widgetCount int
	var styleCount int
	runErr := chromedp.Run(browserContext,
		chromedp.Navigate(pageURL),
		chromedp.WaitReady("#host", chromedp.ByQuery),
		chromedp.Text("#host", &hostText, chromedp.ByQuery),
		chromedp.Evaluate(`document.querySelectorAll(".tm-widget").length`, &widgetCount),
		chromedp.Evaluate(`document.querySelectorAll("#`+widget.StyleElementID+`").length`, &styleCount),
	)
	require.NoError(testingT, runErr)
	require.Equal(testingT, "host content", hostText)
	require.Zero(testingT, widgetCount)
	require.Zero(testingT, styleCount)
}

func TestRuntimeInjectsStylesOnceAcrossReloads(testingT *testing.T) {
	browserContext := buildHeadlessBrowserContext(testingT)
	harness := buildAPIHarness(testingT)
	storedWidget := seedCarousel(testingT, harness, 2)
	pageURL := serveRuntimePage(testingT, harness, fmt.Sprintf(runtimeDoubleLoadHTMLTemplate, storedWidget.ID, storedWidget.ID, storedWidget.ID))

	var styleCount int
	var widgetCount int
	var state runtimeState
	runErr := chromedp.Run(browserContext,
		chromedp.Navigate(pageURL),
		chromedp.WaitReady(runtimeWidgetRootSelector, chromedp.ByQuery),
		chromedp.Evaluate(`document.querySelectorAll("#`+widget.StyleElementID+`").length`, &styleCount),
		chromedp.Evaluate(`document.querySelectorAll(".tm-widget").length`, &widgetCount),
		chromedp.Evaluate(runtimeStateScript(storedWidget.ID), &state),
	)
	require.NoError(testingT, runErr)
	require.Equal(testingT, 1, styleCount)
	require.Equal(testingT, 1, widgetCount)
	require.Equal(testingT, 2, state.Count)
	require.True(testingT, state.Autoplay)
	require.Equal(testingT, int64(2), harness.views.Pending(storedWidget.ID))
}

func locateHeadlessBrowserExecutable() (string, error) {
	environmentVariableNames := []string{
		headlessBrowserEnvironmentChromedp,
		headlessBrowserEnvironmentChromePath,
	}

	for _, environmentVariableName := range environmentVariableNames {
		environmentValue := strings.TrimSpace(os.Getenv(environmentVariableName))
		if environmentValue == "" {
			continue
		}
		return environmentValue, nil
	}

	for _, executableName := range headlessBrowserExecutableNames {
		executablePath, lookupErr := exec.LookPath(executableName)
		if lookupErr == nil {
			return executablePath, nil
		}
	}

	return "", fmt.Errorf("%s: %w", headlessBrowserLocateErrorMessage, errHeadlessBrowserNotFound)
}

func buildHeadlessBrowserContext(testingT *testing.T) context.Context {
	testingT.Helper()

	browserExecutablePath, locateBrowserErr := locateHeadlessBrowserExecutable()
	if locateBrowserErr != nil {
		testingT.Skipf("%s: %v", headlessBrowserSkipReason, locateBrowserErr)
	}

	headlessAllocatorOptions := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.ExecPath(browserExecutablePath),
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
	)

	allocatorContext, allocatorCancel := chromedp.NewExecAllocator(context.Background(), headlessAllocatorOptions...)
	testingT.Cleanup(allocatorCancel)

	browserContext, browserCancel := chromedp.NewContext(allocatorContext)
	testingT.Cleanup(browserCancel)

	contextWithTimeout, timeoutCancel := context.WithTimeout(browserContext, integrationTestTimeout)
	testingT.Cleanup(timeoutCancel)

	return contextWithTimeout
}
