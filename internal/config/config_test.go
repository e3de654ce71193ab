package config

import (
	"testing"
	"time"

	. "github.com/bytedance/mockey"
	c "github.com/smartystreets/goconvey/convey"
)

func TestLoad(t *testing.T) {
	PatchConvey("TestLoad", t, func() {
		// Clear every key so host environment values cannot leak in.
		for _, key := range []string{
			"GEMINI_API_KEY", "GEMINI_BASE_URL", "GEMINI_API_VERSION",
			"LOG_LEVEL", "DEBUG", "PREFER_IPV4",
			"HTTP_TIMEOUT_SECONDS", "REQUEST_TIMEOUT_SECONDS",
			"BATCH_SIZE", "BATCH_STAGGER_MS", "MAX_CONCURRENT", "MOTION_CATALOG",
		} {
			t.Setenv(key, "")
		}

		PatchConvey("Defaults", func() {
			cfg, err := Load()
			c.So(err, c.ShouldBeNil)
			c.So(cfg.GeminiAPIKey, c.ShouldBeEmpty)
			c.So(cfg.GeminiBaseURL, c.ShouldEqual, "https://generativelanguage.googleapis.com")
			c.So(cfg.GeminiAPIVersion, c.ShouldEqual, "v1beta")
			c.So(cfg.LogLevel, c.ShouldEqual, "info")
			c.So(cfg.Debug, c.ShouldBeFalse)
			c.So(cfg.PreferIPv4, c.ShouldBeTrue)
			c.So(cfg.HTTPTimeout, c.ShouldEqual, 180*time.Second)
			c.So(cfg.RequestTimeout, c.ShouldEqual, 180*time.Second)
			c.So(cfg.BatchSize, c.ShouldEqual, 3)
			c.So(cfg.BatchStagger, c.ShouldEqual, 100*time.Millisecond)
			c.So(cfg.MaxConcurrent, c.ShouldEqual, 2)
			c.So(cfg.MotionCatalog, c.ShouldBeEmpty)
		})

		PatchConvey("Overrides", func() {
			t.Setenv("GEMINI_API_KEY", " secret ")
			t.Setenv("GEMINI_BASE_URL", "https://proxy.example.com/")
			t.Setenv("LOG_LEVEL", " DEBUG ")
			t.Setenv("PREFER_IPV4", "false")
			t.Setenv("BATCH_SIZE", "5")
			t.Setenv("BATCH_STAGGER_MS", "250")
			t.Setenv("REQUEST_TIMEOUT_SECONDS", "60")
			t.Setenv("MOTION_CATALOG", "motions.yaml")

			cfg, err := Load()
			c.So(err, c.ShouldBeNil)
			c.So(cfg.GeminiAPIKey, c.ShouldEqual, "secret")
			c.So(cfg.GeminiBaseURL, c.ShouldEqual, "https://proxy.example.com/")
			c.So(cfg.LogLevel, c.ShouldEqual, "debug")
			c.So(cfg.PreferIPv4, c.ShouldBeFalse)
			c.So(cfg.BatchSize, c.ShouldEqual, 5)
			c.So(cfg.BatchStagger, c.ShouldEqual, 250*time.Millisecond)
			c.So(cfg.RequestTimeout, c.ShouldEqual, 60*time.Second)
			c.So(cfg.MotionCatalog, c.ShouldEqual, "motions.yaml")
		})

		PatchConvey("ClampsBadValues", func() {
			t.Setenv("BATCH_SIZE", "0")
			t.Setenv("BATCH_STAGGER_MS", "-5")
			t.Setenv("HTTP_TIMEOUT_SECONDS", "-1")
			t.Setenv("MAX_CONCURRENT", "0")

			cfg, err := Load()
			c.So(err, c.ShouldBeNil)
			c.So(cfg.BatchSize, c.ShouldEqual, 1)
			c.So(cfg.BatchStagger, c.ShouldEqual, time.Duration(0))
			c.So(cfg.HTTPTimeout, c.ShouldEqual, 180*time.Second)
			c.So(cfg.MaxConcurrent, c.ShouldEqual, 1)
		})

		PatchConvey("GarbageFallsBackToDefaults", func() {
			t.Setenv("BATCH_SIZE", "lots")
			t.Setenv("DEBUG", "yep")

			cfg, err := Load()
			c.So(err, c.ShouldBeNil)
			c.So(cfg.BatchSize, c.ShouldEqual, 3)
			c.So(cfg.Debug, c.ShouldBeFalse)
		})
	})
}
