package watch

import (
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	. "github.com/bytedance/mockey"
	c "github.com/smartystreets/goconvey/convey"
)

func TestWatcher(t *testing.T) {
	PatchConvey("TestWatcher", t, func() {
		PatchConvey("ImageFileFires", func() {
			dir := t.TempDir()
			fired := make(chan string, 1)

			w, err := New(Options{
				Dir:      dir,
				Debounce: 50 * time.Millisecond,
				OnFile:   func(path string) { fired <- path },
			})
			c.So(err, c.ShouldBeNil)
			c.So(w.Start(), c.ShouldBeNil)
			defer w.Close()

			target := filepath.Join(dir, "hero.png")
			c.So(os.WriteFile(target, []byte("png"), 0o644), c.ShouldBeNil)

			select {
			case path := <-fired:
				c.So(path, c.ShouldEqual, target)
			case <-time.After(3 * time.Second):
				t.Fatal("watcher never fired")
			}
		})

		PatchConvey("NonImageAndDotfilesIgnored", func() {
			dir := t.TempDir()
			var fires atomic.Int32

			w, err := New(Options{
				Dir:      dir,
				Debounce: 30 * time.Millisecond,
				OnFile:   func(string) { fires.Add(1) },
			})
			c.So(err, c.ShouldBeNil)
			c.So(w.Start(), c.ShouldBeNil)
			defer w.Close()

			c.So(os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644), c.ShouldBeNil)
			c.So(os.WriteFile(filepath.Join(dir, ".hidden.png"), []byte("x"), 0o644), c.ShouldBeNil)

			time.Sleep(300 * time.Millisecond)
			c.So(fires.Load(), c.ShouldEqual, 0)
		})

		PatchConvey("RapidWritesCollapse", func() {
			dir := t.TempDir()
			fired := make(chan string, 8)

			w, err := New(Options{
				Dir:      dir,
				Debounce: 80 * time.Millisecond,
				OnFile:   func(path string) { fired <- path },
			})
			c.So(err, c.ShouldBeNil)
			c.So(w.Start(), c.ShouldBeNil)
			defer w.Close()

			target := filepath.Join(dir, "sprite.jpg")
			for i := 0; i < 5; i++ {
				c.So(os.WriteFile(target, []byte("rev"), 0o644), c.ShouldBeNil)
				time.Sleep(5 * time.Millisecond)
			}

			select {
			case <-fired:
			case <-time.After(3 * time.Second):
				t.Fatal("watcher never fired")
			}

			// The quiet period already passed; any extra event would
			// have fired with the first.
			time.Sleep(200 * time.Millisecond)
			c.So(len(fired), c.ShouldEqual, 0)
		})

		PatchConvey("ExtensionsNormalized", func() {
			dir := t.TempDir()
			w, err := New(Options{
				Dir:        dir,
				Extensions: []string{"PNG", " .Gif "},
				OnFile:     func(string) {},
			})
			c.So(err, c.ShouldBeNil)
			defer w.Close()

			c.So(w.wants(filepath.Join(dir, "a.png")), c.ShouldBeTrue)
			c.So(w.wants(filepath.Join(dir, "b.GIF")), c.ShouldBeTrue)
			c.So(w.wants(filepath.Join(dir, "c.jpg")), c.ShouldBeFalse)
			c.So(w.wants(filepath.Join(dir, ".d.png")), c.ShouldBeFalse)
		})

		PatchConvey("OptionValidation", func() {
			_, err := New(Options{OnFile: func(string) {}})
			c.So(err, c.ShouldNotBeNil)

			_, err = New(Options{Dir: t.TempDir()})
			c.So(err, c.ShouldNotBeNil)
		})

		PatchConvey("CloseDropsPending", func() {
			dir := t.TempDir()
			var fires atomic.Int32

			w, err := New(Options{
				Dir:      dir,
				Debounce: 100 * time.Millisecond,
				OnFile:   func(string) { fires.Add(1) },
			})
			c.So(err, c.ShouldBeNil)
			c.So(w.Start(), c.ShouldBeNil)

			c.So(os.WriteFile(filepath.Join(dir, "late.png"), []byte("x"), 0o644), c.ShouldBeNil)
			time.Sleep(30 * time.Millisecond)
			c.So(w.Close(), c.ShouldBeNil)

			time.Sleep(250 * time.Millisecond)
			c.So(fires.Load(), c.ShouldEqual, 0)
		})
	})
}
