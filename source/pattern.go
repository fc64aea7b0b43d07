package source

import "vpresent/media"

const barWidth = 8

// paint draws vertical bars that scroll one pixel per frame.
func paint(s *media.Sample, frame int) {
	w, h := s.Width, s.Height
	if w <= 0 || h <= 0 || len(s.Data) < s.Format.FrameSize(w, h) {
		return
	}

	switch s.Format {
	case media.FormatRGB32, media.FormatARGB32:
		for y := 0; y < h; y++ {
			row := s.Data[y*w*4 : (y+1)*w*4]
			for x := 0; x < w; x++ {
				v := level(x + frame)
				row[x*4] = v
				row[x*4+1] = v
				row[x*4+2] = v
				row[x*4+3] = 0xff
			}
		}
	case media.FormatYUY2:
		for y := 0; y < h; y++ {
			row := s.Data[y*w*2 : (y+1)*w*2]
			for x := 0; x < w; x++ {
				row[x*2] = level(x + frame)
				row[x*2+1] = 0x80
			}
		}
	case media.FormatNV12:
		luma := s.Data[:w*h]
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				luma[y*w+x] = level(x + frame)
			}
		}

		chroma := s.Data[w*h : s.Format.FrameSize(w, h)]
		for i := range chroma {
			chroma[i] = 0x80
		}
	}
}

func level(x int) byte {
	if (x/barWidth)%2 == 0 {
		return 0xeb
	}

	return 0x10
}
