// Copyright (C) 2024 The Skylight Authors
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

package fits

import (
	"compress/gzip"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path"
	"regexp"
	"strconv"
	"strings"

	"github.com/skylight-astro/skylight/internal/stats"
)

var reParser *regexp.Regexp = compileRE() // Regexp parser for FITS header lines

func NewImageFromFile(fileName string, id int, logWriter io.Writer) (i *Image, err error) {
	i = NewImage()
	i.ID = id
	return i, i.ReadFile(fileName, logWriter)
}

// Read FITS data from the file with the given name. Decompresses gzip if
// .gz or .gzip suffix is present.
func (f *Image) ReadFile(fileName string, logWriter io.Writer) error {
	file, err := os.Open(fileName)
	if err != nil {
		return err
	}
	defer file.Close()

	var r io.Reader = file
	f.FileName = fileName

	ext := strings.ToLower(path.Ext(fileName))
	if ext == ".gz" || ext == ".gzip" {
		r, err = gzip.NewReader(file)
		if err != nil {
			return err
		}
	}

	return f.Read(r, logWriter)
}

func (f *Image) popHeaderInt32(key string) (res int32, err error) {
	if val, ok := f.Header.Ints[key]; ok {
		delete(f.Header.Ints, key)
		return val, nil
	}
	return 0, fmt.Errorf("%d: FITS header does not contain key %s", f.ID, key)
}

func (f *Image) popHeaderInt32OrFloat(key string) (res float32, err error) {
	if val, ok := f.Header.Ints[key]; ok {
		delete(f.Header.Ints, key)
		return float32(val), nil
	} else if val, ok := f.Header.Floats[key]; ok {
		delete(f.Header.Floats, key)
		return val, nil
	}
	return 0, fmt.Errorf("%d: FITS header does not contain key %s", f.ID, key)
}

// Read walks the header/data units of a FITS stream and loads the first
// one carrying image data. Observatory pipeline products (e.g. MAST
// downloads) typically ship a data-less primary HDU followed by an IMAGE
// extension with the actual exposure; plain camera files put the data
// straight into the primary HDU. Both layouts land here.
func (f *Image) Read(r io.Reader, logWriter io.Writer) (err error) {
	for hdu := 0; ; hdu++ {
		f.Header = NewHeader()
		if err = f.Header.read(r, f.ID, logWriter); err != nil {
			if hdu > 0 && (errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF)) {
				return fmt.Errorf("%d: no HDU with image data found", f.ID)
			}
			return err
		}

		isImage := true
		if hdu == 0 {
			if !f.Header.Bools["SIMPLE"] {
				return fmt.Errorf("%d: not a valid FITS file; SIMPLE=T missing in header", f.ID)
			}
			delete(f.Header.Bools, "SIMPLE")
		} else {
			xtension := strings.TrimSpace(f.Header.Strings["XTENSION"])
			delete(f.Header.Strings, "XTENSION")
			isImage = xtension == "IMAGE"
		}

		if err = f.parseGeometry(); err != nil {
			return err
		}

		if isImage && f.Pixels > 0 {
			if hdu > 0 {
				fmt.Fprintf(logWriter, "%d: using image data from HDU %d\n", f.ID, hdu)
			}
			return f.readData(r, logWriter)
		}

		// skip this HDU's data unit, if any, and move on to the next
		if err = f.skipData(r); err != nil {
			return err
		}
	}
}

// parseGeometry pops the mandatory and processing-relevant keys of the
// current header into typed fields.
func (f *Image) parseGeometry() (err error) {
	if f.Bitpix, err = f.popHeaderInt32("BITPIX"); err != nil {
		return err
	}
	var naxis int32
	if naxis, err = f.popHeaderInt32("NAXIS"); err != nil {
		return err
	}
	f.Naxisn = make([]int32, naxis)
	f.Pixels = int32(1)
	for i := int32(1); i <= naxis; i++ {
		name := "NAXIS" + strconv.FormatInt(int64(i), 10)
		var nai int32
		if nai, err = f.popHeaderInt32(name); err != nil {
			return err
		}
		f.Naxisn[i-1] = nai
		f.Pixels *= nai
	}
	if naxis == 0 {
		f.Pixels = 0
	}

	if f.Bzero, err = f.popHeaderInt32OrFloat("BZERO"); err != nil {
		f.Bzero = 0
	}
	if f.Bscale, err = f.popHeaderInt32OrFloat("BSCALE"); err != nil {
		f.Bscale = 1
	}
	if blank, err := f.popHeaderInt32("BLANK"); err == nil && f.Bitpix > 0 {
		f.Blank = &blank
	} else {
		f.Blank = nil
	}
	if f.Exposure, err = f.popHeaderInt32OrFloat("EXPOSURE"); err != nil {
		if f.Exposure, err = f.popHeaderInt32OrFloat("EXPTIME"); err != nil {
			f.Exposure = 0
		}
	}
	return nil
}

// skipData discards the data unit of the current HDU including its block
// padding. Size per the FITS standard: |BITPIX|/8 * GCOUNT * (PCOUNT +
// product of NAXISn), with PCOUNT=0 and GCOUNT=1 when absent.
func (f *Image) skipData(r io.Reader) error {
	pcount, err := f.popHeaderInt32("PCOUNT")
	if err != nil {
		pcount = 0
	}
	gcount, err := f.popHeaderInt32("GCOUNT")
	if err != nil {
		gcount = 1
	}
	elements := int64(pcount)
	if len(f.Naxisn) > 0 {
		prod := int64(1)
		for _, n := range f.Naxisn {
			prod *= int64(n)
		}
		elements += prod
	}
	bytes := bytesPerValue(f.Bitpix) * int64(gcount) * elements
	if bytes == 0 {
		return nil
	}
	if pad := bytes % int64(fitsBlockSize); pad != 0 {
		bytes += int64(fitsBlockSize) - pad
	}
	if _, err := io.CopyN(io.Discard, r, bytes); err != nil {
		return fmt.Errorf("%d: skipping %d data bytes: %w", f.ID, bytes, err)
	}
	return nil
}

func bytesPerValue(bitpix int32) int64 {
	if bitpix < 0 {
		bitpix = -bitpix
	}
	return int64(bitpix) / 8
}

const bufLen int = 16 * 1024 // input buffer length for reading from file

// readData loads the data unit of the current HDU, converting from
// network byte order to float32, applying Bzero/Bscale and mapping BLANK
// sentinels to NaN.
func (f *Image) readData(r io.Reader, logWriter io.Writer) (err error) {
	switch f.Bitpix {
	case 8, 16, -32:
		// converts to float32 without loss
	case 32, 64:
		fmt.Fprintf(logWriter, "%d: Warning: loss of precision converting int%d to float32 values\n", f.ID, f.Bitpix)
	case -64:
		fmt.Fprintf(logWriter, "%d: Warning: loss of precision converting float%d to float32 values\n", f.ID, -f.Bitpix)
	default:
		return fmt.Errorf("%d: unknown BITPIX value %d", f.ID, f.Bitpix)
	}

	bpv := int(bytesPerValue(f.Bitpix))
	decode := f.decoder()
	f.Data = make([]float32, int(f.Pixels))
	buf := make([]byte, bufLen-bufLen%bpv)

	for idx := 0; idx < len(f.Data); {
		need := (len(f.Data) - idx) * bpv
		if need > len(buf) {
			need = len(buf)
		}
		if _, err = io.ReadFull(r, buf[:need]); err != nil {
			return fmt.Errorf("%d: %w", f.ID, err)
		}
		for off := 0; off < need; off += bpv {
			f.Data[idx] = decode(buf[off : off+bpv])
			idx++
		}
	}

	f.Bzero, f.Bscale = 0, 1 // data values incorporate these now
	f.Stats = stats.Calc(f.Data)
	return nil
}

// decoder returns the per-value decode function for the current BITPIX.
// Values are big-endian per the FITS standard.
func (f *Image) decoder() func(b []byte) float32 {
	bzero, bscale, blank := f.Bzero, f.Bscale, f.Blank
	nan := float32(math.NaN())

	switch f.Bitpix {
	case 8:
		return func(b []byte) float32 {
			v := int32(b[0])
			if blank != nil && v == *blank {
				return nan
			}
			return float32(v)*bscale + bzero
		}
	case 16:
		return func(b []byte) float32 {
			v := int16(uint16(b[0])<<8 | uint16(b[1]))
			if blank != nil && int32(v) == *blank {
				return nan
			}
			return float32(v)*bscale + bzero
		}
	case 32:
		return func(b []byte) float32 {
			v := int32(uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3]))
			if blank != nil && v == *blank {
				return nan
			}
			return float32(v)*bscale + bzero
		}
	case 64:
		return func(b []byte) float32 {
			v := int64(uint64(b[0])<<56 | uint64(b[1])<<48 | uint64(b[2])<<40 | uint64(b[3])<<32 |
				uint64(b[4])<<24 | uint64(b[5])<<16 | uint64(b[6])<<8 | uint64(b[7]))
			if blank != nil && v == int64(*blank) {
				return nan
			}
			return float32(v)*bscale + bzero
		}
	case -32:
		return func(b []byte) float32 {
			bits := uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3])
			return math.Float32frombits(bits)*bscale + bzero
		}
	default: // -64
		return func(b []byte) float32 {
			bits := uint64(b[0])<<56 | uint64(b[1])<<48 | uint64(b[2])<<40 | uint64(b[3])<<32 |
				uint64(b[4])<<24 | uint64(b[5])<<16 | uint64(b[6])<<8 | uint64(b[7])
			return float32(math.Float64frombits(bits))*bscale + bzero
		}
	}
}

func (h *Header) read(r io.Reader, id int, logWriter io.Writer) error {
	buf := make([]byte, fitsBlockSize)

	for h.Length = 0; !h.End; {
		// read next header unit
		bytesRead, err := io.ReadFull(r, buf)
		if err != nil || bytesRead != fitsBlockSize {
			return fmt.Errorf("%d: reading header: %w", id, err)
		}
		h.Length += int32(bytesRead)

		// parse all lines in this header unit
		for lineNo := 0; lineNo < fitsBlockSize/HeaderLineSize && !h.End; lineNo++ {
			line := buf[lineNo*HeaderLineSize : (lineNo+1)*HeaderLineSize]
			subValues := reParser.FindSubmatch(line)
			if subValues == nil {
				fmt.Fprintf(logWriter, "%d: Warning: cannot parse '%s', ignoring\n", id, string(line))
			} else {
				subNames := reParser.SubexpNames()
				h.readLine(subNames, subValues, id, lineNo, logWriter)
			}
		}
	}
	return nil
}

func (h *Header) readLine(subNames []string, subValues [][]byte, id, lineNo int, logWriter io.Writer) {
	key := ""
	// ignore index 0 which is the whole line
	for i := 1; i < len(subNames); i++ {
		if subValues[i] != nil && len(subNames[i]) == 1 {
			switch c := subNames[i][0]; c {
			case byte('E'): // end line
				h.End = true
			case byte('H'): // history line
				h.History = append(h.History, string(subValues[i]))
			case byte('C'): // comment line
				h.Comments = append(h.Comments, string(subValues[i]))
			case byte('k'): // key
				key = string(subValues[i])
			case byte('b'): // boolean
				if len(subValues[i]) > 0 {
					v := subValues[i][0]
					h.Bools[key] = v == byte('t') || v == byte('T')
				}
			case byte('i'): // int
				val, err := strconv.ParseInt(string(subValues[i]), 10, 64)
				if err == nil {
					h.Ints[key] = int32(val)
				}
			case byte('f'): // float
				val, err := strconv.ParseFloat(string(subValues[i]), 64)
				if err == nil {
					h.Floats[key] = float32(val)
				}
			case byte('s'): // string
				h.Strings[key] = string(subValues[i])
			case byte('d'): // date
				h.Dates[key] = string(subValues[i])
			case byte('c'): // comment
				// ignore value comments
			default:
				fmt.Fprintf(logWriter, "%d:%d:Warning:Unknown token '%s'\n", id, lineNo, string(c))
			}
		}
	}
}

// Build regexp parser for FITS header lines
func compileRE() *regexp.Regexp {
	white := "\\s+"
	whiteOpt := "\\s*"
	whiteLine := white

	hist := "HISTORY"
	rest := ".*"
	histLine := hist + white + "(?P<H>" + rest + ")"

	commKey := "COMMENT"
	commLine := commKey + white + "(?P<C>" + rest + ")"

	end := "(?P<E>END)"
	endLine := end + whiteOpt

	key := "(?P<k>[A-Z0-9_-]+)"
	equals := "="

	boo := "(?P<b>[TF])"
	inte := "(?P<i>[+-]?[0-9]+)"
	floa := "(?P<f>[+-]?[0-9]*\\.[0-9]*(?:[ED][-+]?[0-9]+)?)"
	stri := "'(?P<s>[^']*)'"
	date := "(?P<d>[0-9]{1,4}-?[012][0-9]-?[0123][0-9]T[012][0-9]:?[0-5][0-9]:?[0-5][0-9].?[0-9]*)"
	val := "(?:" + boo + "|" + inte + "|" + floa + "|" + stri + "|" + date + ")"

	commOpt := "(?:/(?P<c>.*))?"
	keyLine := key + whiteOpt + equals + whiteOpt + val + whiteOpt + commOpt

	lineRe := "^(?:" + whiteLine + "|" + histLine + "|" + commLine + "|" + keyLine + "|" + endLine + ")$"
	return regexp.MustCompile(lineRe)
}
