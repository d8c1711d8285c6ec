package icon_test

import (
	"bytes"
	"encoding/binary"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"remix/internal/icon"
	"remix/internal/testsupport"
)

func TestDrawIsDeterministic(t *testing.T) {
	a := icon.Draw(64, icon.Params{})
	b := icon.Draw(64, icon.Params{})
	if !bytes.Equal(a.Pix, b.Pix) {
		t.Fatal("two renders of the same icon differ")
	}
}

func TestDrawGeometry(t *testing.T) {
	img := icon.Draw(64, icon.Params{})

	if _, _, _, a := img.At(0, 0).RGBA(); a != 0 {
		t.Fatalf("corner pixel is not transparent (alpha %d)", a)
	}
	if _, _, _, a := img.At(63, 63).RGBA(); a != 0 {
		t.Fatalf("opposite corner is not transparent (alpha %d)", a)
	}

	// The tallest bar crosses the center, so the center pixel is wave-colored.
	center := img.RGBAAt(32, 32)
	if center.A != 255 || center.R < 0xC8 {
		t.Fatalf("center pixel = %+v, want bright wave color", center)
	}

	// Just inside the left edge at mid height: background gradient, opaque.
	edge := img.RGBAAt(2, 32)
	if edge.A != 255 {
		t.Fatalf("edge pixel alpha = %d", edge.A)
	}
	if edge.R > 60 || edge.G > 60 || edge.B > 80 {
		t.Fatalf("edge pixel = %+v, want dark background", edge)
	}
}

func TestDrawHonorsPalette(t *testing.T) {
	img := icon.Draw(64, icon.Params{Wave: color.NRGBA{R: 0xFF, A: 0xFF}})
	center := img.RGBAAt(32, 32)
	if center.R != 255 || center.G != 0 {
		t.Fatalf("center pixel = %+v, want pure red wave", center)
	}
}

func TestParseHexColor(t *testing.T) {
	c, err := icon.ParseHexColor("#E8EEF6")
	if err != nil {
		t.Fatalf("ParseHexColor: %v", err)
	}
	if c.R != 0xE8 || c.G != 0xEE || c.B != 0xF6 || c.A != 0xFF {
		t.Fatalf("parsed color = %+v", c)
	}
	if _, err := icon.ParseHexColor("12151B"); err != nil {
		t.Fatalf("bare hex rejected: %v", err)
	}
	if _, err := icon.ParseHexColor("#12151"); err == nil {
		t.Fatal("short hex accepted")
	}
	if _, err := icon.ParseHexColor("#nothex"); err == nil {
		t.Fatal("non-hex accepted")
	}
}

func TestParamsFromConfig(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	params, err := icon.ParamsFromConfig(cfg)
	if err != nil {
		t.Fatalf("ParamsFromConfig: %v", err)
	}
	if params.Wave.R != 0xE8 {
		t.Fatalf("wave = %+v", params.Wave)
	}
	if params.CornerRatio != 0.2 {
		t.Fatalf("corner ratio = %v", params.CornerRatio)
	}

	cfg.Icon.Wave = "#FF0000"
	params, err = icon.ParamsFromConfig(cfg)
	if err != nil {
		t.Fatalf("ParamsFromConfig with override: %v", err)
	}
	if params.Wave.R != 0xFF || params.Wave.G != 0 {
		t.Fatalf("override wave = %+v", params.Wave)
	}

	cfg.Icon.BackgroundTop = "not a color"
	if _, err := icon.ParamsFromConfig(cfg); err == nil {
		t.Fatal("invalid color accepted")
	}
}

func TestWriteIconsetMembers(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "remix.iconset")
	paths, err := icon.WriteIconset(dir, icon.Params{})
	if err != nil {
		t.Fatalf("WriteIconset: %v", err)
	}
	if len(paths) != 10 {
		t.Fatalf("wrote %d members, want 10", len(paths))
	}

	check := func(name string, pixels int) {
		t.Helper()
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			t.Fatalf("read %s: %v", name, err)
		}
		img, err := png.Decode(bytes.NewReader(data))
		if err != nil {
			t.Fatalf("decode %s: %v", name, err)
		}
		if img.Bounds().Dx() != pixels || img.Bounds().Dy() != pixels {
			t.Fatalf("%s is %v, want %dx%d", name, img.Bounds(), pixels, pixels)
		}
	}
	check("icon_16x16.png", 16)
	check("icon_16x16@2x.png", 32)
	check("icon_256x256.png", 256)
	check("icon_512x512@2x.png", 1024)
}

func TestWriteICNSStructure(t *testing.T) {
	path := filepath.Join(t.TempDir(), "remix.icns")
	if err := icon.WriteICNS(path, icon.Params{}); err != nil {
		t.Fatalf("WriteICNS: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read icns: %v", err)
	}
	if len(data) < 8 || string(data[:4]) != "icns" {
		t.Fatal("missing icns magic")
	}
	if total := binary.BigEndian.Uint32(data[4:8]); int(total) != len(data) {
		t.Fatalf("header length %d, file length %d", total, len(data))
	}

	want := map[string]int{
		"icp4": 16, "ic11": 32, "icp5": 32, "ic12": 64, "icp6": 64,
		"ic07": 128, "ic13": 256, "ic08": 256, "ic14": 512, "ic09": 512,
		"ic10": 1024,
	}
	seen := make(map[string]int)
	offset := 8
	for offset < len(data) {
		if offset+8 > len(data) {
			t.Fatalf("truncated entry header at %d", offset)
		}
		code := string(data[offset : offset+4])
		length := int(binary.BigEndian.Uint32(data[offset+4 : offset+8]))
		if length < 8 || offset+length > len(data) {
			t.Fatalf("entry %s has length %d", code, length)
		}
		img, err := png.Decode(bytes.NewReader(data[offset+8 : offset+length]))
		if err != nil {
			t.Fatalf("entry %s payload: %v", code, err)
		}
		seen[code] = img.Bounds().Dx()
		offset += length
	}
	if len(seen) != len(want) {
		t.Fatalf("icns has %d entries, want %d", len(seen), len(want))
	}
	for code, pixels := range want {
		if seen[code] != pixels {
			t.Fatalf("entry %s is %d px, want %d", code, seen[code], pixels)
		}
	}
}
