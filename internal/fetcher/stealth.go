package fetcher

import (
	"fmt"
	"math/rand"
	"strings"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
)

// StealthConfig configures how the rendering browser presents itself.
type StealthConfig struct {
	// Window size for browser launch, "w,h".
	WindowSize string

	// Viewport reported to the page.
	ViewportWidth  int
	ViewportHeight int

	// Language for the lang flag and Accept-Language.
	Language string

	// UserAgent overrides the browser's default agent when set.
	UserAgent string
}

// DefaultStealthConfig returns a stealth configuration that mimics a typical
// desktop browser on a Korean locale.
func DefaultStealthConfig(userAgent string) *StealthConfig {
	viewports := []struct{ w, h int }{
		{1920, 1080}, {1366, 768}, {1536, 864}, {1440, 900},
	}
	vp := viewports[rand.Intn(len(viewports))]

	return &StealthConfig{
		WindowSize:     fmt.Sprintf("%d,%d", vp.w, vp.h),
		ViewportWidth:  vp.w,
		ViewportHeight: vp.h,
		Language:       "ko-KR",
		UserAgent:      userAgent,
	}
}

// applyLaunch adds launch flags for this profile.
func (sc *StealthConfig) applyLaunch(l *launcher.Launcher) *launcher.Launcher {
	if sc.WindowSize != "" {
		l = l.Set("window-size", sc.WindowSize)
	}
	if sc.Language != "" {
		l = l.Set("lang", sc.Language)
	}
	return l
}

// newPage opens a page in b with the stealth patches applied before any
// site script runs.
func (sc *StealthConfig) newPage(b *rod.Browser) (*rod.Page, error) {
	page, err := stealth.Page(b)
	if err != nil {
		return nil, fmt.Errorf("stealth page: %w", err)
	}

	if sc.UserAgent != "" {
		err := page.SetUserAgent(&proto.NetworkSetUserAgentOverride{
			UserAgent:      sc.UserAgent,
			AcceptLanguage: acceptLanguage(sc.Language),
		})
		if err != nil {
			_ = page.Close()
			return nil, fmt.Errorf("set user agent: %w", err)
		}
	}

	if sc.ViewportWidth > 0 && sc.ViewportHeight > 0 {
		err := page.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
			Width:             sc.ViewportWidth,
			Height:            sc.ViewportHeight,
			DeviceScaleFactor: 1,
		})
		if err != nil {
			_ = page.Close()
			return nil, fmt.Errorf("set viewport: %w", err)
		}
	}

	return page, nil
}

func acceptLanguage(lang string) string {
	if lang == "" {
		return ""
	}
	base := strings.SplitN(lang, "-", 2)[0]
	return fmt.Sprintf("%s,%s;q=0.9,en-US;q=0.8,en;q=0.7", lang, base)
}
