package encode

import (
	"bytes"
	"encoding/binary"
	"image/color"
	"image/png"
	"testing"

	. "github.com/bytedance/mockey"
	c "github.com/smartystreets/goconvey/convey"
)

var pngSig = []byte("\x89PNG\r\n\x1a\n")

type chunk struct {
	typ  string
	data []byte
}

// parseChunks splits a PNG stream into its chunks, checking only the
// framing, not the CRCs.
func parseChunks(t *testing.T, raw []byte) []chunk {
	t.Helper()
	if !bytes.HasPrefix(raw, pngSig) {
		t.Fatal("missing PNG signature")
	}
	var chunks []chunk
	for off := len(pngSig); off < len(raw); {
		if off+8 > len(raw) {
			t.Fatalf("truncated chunk header at %d", off)
		}
		length := int(binary.BigEndian.Uint32(raw[off : off+4]))
		typ := string(raw[off+4 : off+8])
		end := off + 8 + length + 4
		if end > len(raw) {
			t.Fatalf("truncated %s chunk at %d", typ, off)
		}
		chunks = append(chunks, chunk{typ: typ, data: raw[off+8 : off+8+length]})
		off = end
	}
	return chunks
}

func typesOf(chunks []chunk) []string {
	out := make([]string, len(chunks))
	for i, ch := range chunks {
		out[i] = ch.typ
	}
	return out
}

func solidRGBA(w, h int, r, g, b, a byte) []byte {
	buf := make([]byte, w*h*4)
	for i := 0; i < len(buf); i += 4 {
		buf[i], buf[i+1], buf[i+2], buf[i+3] = r, g, b, a
	}
	return buf
}

func TestAPNG(t *testing.T) {
	PatchConvey("TestAPNG", t, func() {
		frames := [][]byte{
			solidRGBA(4, 3, 255, 0, 0, 255),
			solidRGBA(4, 3, 0, 255, 0, 255),
			solidRGBA(4, 3, 0, 0, 255, 128),
		}

		PatchConvey("ChunkLayout", func() {
			out, err := APNG(frames, 4, 3, 125)
			c.So(err, c.ShouldBeNil)

			chunks := parseChunks(t, out)
			types := typesOf(chunks)

			c.So(types[0], c.ShouldEqual, "IHDR")
			c.So(types[1], c.ShouldEqual, "acTL")
			c.So(types[len(types)-1], c.ShouldEqual, "IEND")

			counts := map[string]int{}
			for _, typ := range types {
				counts[typ]++
			}
			c.So(counts["fcTL"], c.ShouldEqual, 3)
			c.So(counts["IDAT"], c.ShouldBeGreaterThanOrEqualTo, 1)
			c.So(counts["fdAT"], c.ShouldBeGreaterThanOrEqualTo, 2)

			// The first frame is part of the animation, so its fcTL
			// precedes the IDAT data.
			firstFcTL, firstIDAT := -1, -1
			for i, typ := range types {
				if typ == "fcTL" && firstFcTL < 0 {
					firstFcTL = i
				}
				if typ == "IDAT" && firstIDAT < 0 {
					firstIDAT = i
				}
			}
			c.So(firstFcTL, c.ShouldBeGreaterThan, -1)
			c.So(firstIDAT, c.ShouldBeGreaterThan, firstFcTL)

			ihdr := chunks[0].data
			c.So(binary.BigEndian.Uint32(ihdr[0:4]), c.ShouldEqual, 4)
			c.So(binary.BigEndian.Uint32(ihdr[4:8]), c.ShouldEqual, 3)
			c.So(ihdr[8], c.ShouldEqual, 8) // bit depth
			c.So(ihdr[9], c.ShouldEqual, 6) // truecolor with alpha

			actl := chunks[1].data
			c.So(binary.BigEndian.Uint32(actl[0:4]), c.ShouldEqual, 3) // num_frames
			c.So(binary.BigEndian.Uint32(actl[4:8]), c.ShouldEqual, 0) // num_plays: forever
		})

		PatchConvey("FrameControl", func() {
			out, err := APNG(frames, 4, 3, 125)
			c.So(err, c.ShouldBeNil)

			for _, ch := range parseChunks(t, out) {
				if ch.typ != "fcTL" {
					continue
				}
				c.So(len(ch.data), c.ShouldEqual, 26)
				c.So(binary.BigEndian.Uint32(ch.data[4:8]), c.ShouldEqual, 4)  // width
				c.So(binary.BigEndian.Uint32(ch.data[8:12]), c.ShouldEqual, 3) // height
				c.So(binary.BigEndian.Uint32(ch.data[12:16]), c.ShouldEqual, 0)
				c.So(binary.BigEndian.Uint32(ch.data[16:20]), c.ShouldEqual, 0)
				c.So(binary.BigEndian.Uint16(ch.data[20:22]), c.ShouldEqual, 125)  // delay_num
				c.So(binary.BigEndian.Uint16(ch.data[22:24]), c.ShouldEqual, 1000) // delay_den
				c.So(ch.data[24], c.ShouldEqual, 0)                                // dispose: none
				c.So(ch.data[25], c.ShouldEqual, 0)                                // blend: source
			}
		})

		PatchConvey("SequenceNumbersAreConsecutive", func() {
			out, err := APNG(frames, 4, 3, 125)
			c.So(err, c.ShouldBeNil)

			var seqs []uint32
			for _, ch := range parseChunks(t, out) {
				if ch.typ == "fcTL" || ch.typ == "fdAT" {
					seqs = append(seqs, binary.BigEndian.Uint32(ch.data[0:4]))
				}
			}
			c.So(len(seqs), c.ShouldBeGreaterThanOrEqualTo, 5)
			for i, s := range seqs {
				c.So(s, c.ShouldEqual, uint32(i))
			}
		})

		PatchConvey("DefaultImageIsFirstFrame", func() {
			out, err := APNG(frames, 4, 3, 125)
			c.So(err, c.ShouldBeNil)

			img, derr := png.Decode(bytes.NewReader(out))
			c.So(derr, c.ShouldBeNil)
			c.So(img.Bounds().Dx(), c.ShouldEqual, 4)
			c.So(img.Bounds().Dy(), c.ShouldEqual, 3)

			got := color.NRGBAModel.Convert(img.At(0, 0)).(color.NRGBA)
			c.So(got, c.ShouldResemble, color.NRGBA{R: 255, A: 255})
		})

		PatchConvey("DelayClamped", func() {
			out, err := APNG(frames[:1], 4, 3, 100000)
			c.So(err, c.ShouldBeNil)

			for _, ch := range parseChunks(t, out) {
				if ch.typ == "fcTL" {
					c.So(binary.BigEndian.Uint16(ch.data[20:22]), c.ShouldEqual, 65535)
				}
			}
		})

		PatchConvey("Validation", func() {
			_, err := APNG(nil, 4, 3, 125)
			c.So(err, c.ShouldNotBeNil)

			_, err = APNG(frames, 0, 3, 125)
			c.So(err, c.ShouldNotBeNil)

			_, err = APNG([][]byte{make([]byte, 7)}, 4, 3, 125)
			c.So(err, c.ShouldNotBeNil)
			c.So(err.Error(), c.ShouldContainSubstring, "frame 1")
		})
	})
}
