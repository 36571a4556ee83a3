package preprocess

import (
	"bufio"
	"fmt"
	"image"
	"image/color"
	"io"
	"os"

	"ocrpdf/pkg/models"
)

// PNM support for the unpaper round-trip. unpaper only speaks the netpbm
// formats, so the raster is encoded as raw PBM (mono), PGM (gray) or PPM
// (color) on the way in and decoded back on the way out.

// encodePNM writes img to path in the raw PNM flavor matching mode.
func encodePNM(path string, img image.Image, mode models.ColorMode) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	w := bufio.NewWriter(f)
	bounds := img.Bounds()

	switch mode {
	case models.ColorModeMono:
		err = encodePBM(w, img, bounds)
	case models.ColorModeGray:
		err = encodePGM(w, img, bounds)
	default:
		err = encodePPM(w, img, bounds)
	}
	if err != nil {
		f.Close()
		return err
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func encodePBM(w *bufio.Writer, img image.Image, bounds image.Rectangle) error {
	fmt.Fprintf(w, "P4\n%d %d\n", bounds.Dx(), bounds.Dy())
	rowBytes := (bounds.Dx() + 7) / 8
	row := make([]byte, rowBytes)
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for i := range row {
			row[i] = 0
		}
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			g := color.GrayModel.Convert(img.At(x, y)).(color.Gray)
			// PBM: 1 = black
			if g.Y < 128 {
				bit := x - bounds.Min.X
				row[bit/8] |= 0x80 >> uint(bit%8)
			}
		}
		if _, err := w.Write(row); err != nil {
			return err
		}
	}
	return nil
}

func encodePGM(w *bufio.Writer, img image.Image, bounds image.Rectangle) error {
	fmt.Fprintf(w, "P5\n%d %d\n255\n", bounds.Dx(), bounds.Dy())
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			g := color.GrayModel.Convert(img.At(x, y)).(color.Gray)
			if err := w.WriteByte(g.Y); err != nil {
				return err
			}
		}
	}
	return nil
}

func encodePPM(w *bufio.Writer, img image.Image, bounds image.Rectangle) error {
	fmt.Fprintf(w, "P6\n%d %d\n255\n", bounds.Dx(), bounds.Dy())
	buf := make([]byte, 3)
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			r, g, b, _ := img.At(x, y).RGBA()
			buf[0], buf[1], buf[2] = byte(r>>8), byte(g>>8), byte(b>>8)
			if _, err := w.Write(buf); err != nil {
				return err
			}
		}
	}
	return nil
}

// decodePNM reads a raw PBM/PGM/PPM file produced by unpaper.
func decodePNM(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	r := bufio.NewReader(f)

	magic, err := pnmToken(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptImage, err)
	}

	width, err := pnmInt(r)
	if err != nil {
		return nil, fmt.Errorf("%w: bad width: %v", ErrCorruptImage, err)
	}
	height, err := pnmInt(r)
	if err != nil {
		return nil, fmt.Errorf("%w: bad height: %v", ErrCorruptImage, err)
	}
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("%w: non-positive dimensions %dx%d", ErrCorruptImage, width, height)
	}

	switch magic {
	case "P4":
		return decodePBMRaster(r, width, height)
	case "P5":
		if _, err := pnmInt(r); err != nil { // maxval
			return nil, fmt.Errorf("%w: bad maxval: %v", ErrCorruptImage, err)
		}
		return decodePGMRaster(r, width, height)
	case "P6":
		if _, err := pnmInt(r); err != nil {
			return nil, fmt.Errorf("%w: bad maxval: %v", ErrCorruptImage, err)
		}
		return decodePPMRaster(r, width, height)
	default:
		return nil, fmt.Errorf("%w: unsupported PNM magic %q", ErrCorruptImage, magic)
	}
}

func decodePBMRaster(r io.Reader, width, height int) (image.Image, error) {
	img := image.NewGray(image.Rect(0, 0, width, height))
	rowBytes := (width + 7) / 8
	row := make([]byte, rowBytes)
	for y := 0; y < height; y++ {
		if _, err := io.ReadFull(r, row); err != nil {
			return nil, fmt.Errorf("%w: truncated PBM: %v", ErrCorruptImage, err)
		}
		for x := 0; x < width; x++ {
			v := byte(255)
			if row[x/8]&(0x80>>uint(x%8)) != 0 {
				v = 0
			}
			img.SetGray(x, y, color.Gray{Y: v})
		}
	}
	return img, nil
}

func decodePGMRaster(r io.Reader, width, height int) (image.Image, error) {
	img := image.NewGray(image.Rect(0, 0, width, height))
	if _, err := io.ReadFull(r, img.Pix); err != nil {
		return nil, fmt.Errorf("%w: truncated PGM: %v", ErrCorruptImage, err)
	}
	return img, nil
}

func decodePPMRaster(r io.Reader, width, height int) (image.Image, error) {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	row := make([]byte, width*3)
	for y := 0; y < height; y++ {
		if _, err := io.ReadFull(r, row); err != nil {
			return nil, fmt.Errorf("%w: truncated PPM: %v", ErrCorruptImage, err)
		}
		for x := 0; x < width; x++ {
			o := img.PixOffset(x, y)
			img.Pix[o+0] = row[x*3+0]
			img.Pix[o+1] = row[x*3+1]
			img.Pix[o+2] = row[x*3+2]
			img.Pix[o+3] = 0xff
		}
	}
	return img, nil
}

// pnmToken reads the next whitespace-delimited token, skipping # comments.
func pnmToken(r *bufio.Reader) (string, error) {
	var tok []byte
	inComment := false
	for {
		b, err := r.ReadByte()
		if err != nil {
			if err == io.EOF && len(tok) > 0 {
				return string(tok), nil
			}
			return "", err
		}
		switch {
		case inComment:
			if b == '\n' {
				inComment = false
			}
		case b == '#':
			inComment = true
		case b == ' ' || b == '\t' || b == '\n' || b == '\r':
			if len(tok) > 0 {
				return string(tok), nil
			}
		default:
			tok = append(tok, b)
		}
	}
}

func pnmInt(r *bufio.Reader) (int, error) {
	tok, err := pnmToken(r)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, c := range tok {
		if c < '0' || c > '9' {
			return 0, fmt.Errorf("non-numeric token %q", tok)
		}
		n = n*10 + int(c-'0')
	}
	return n, nil
}
