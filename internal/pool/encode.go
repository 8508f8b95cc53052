package pool

import "github.com/23skdu/longbow-axi/internal/accel"

type put struct {
	f accel.Field
	v int
}

// Encode packs a validated descriptor and its plan into a register image.
func Encode(d Descriptor, p Plan) (*accel.Image, error) {
	rowWidth, ok := rowWidthCodes[d.RowWidth]
	if !ok {
		return nil, accel.OutOfRange("row_width", int64(d.RowWidth), 4, 4096)
	}

	im := accel.NewImage()
	puts := []put{
		{fMode, int(d.Mode)},
		{fFormat, int(d.Format)},
	}
	if d.Mode.Pooling() {
		puts = append(puts,
			put{fStrideH, d.StrideH}, put{fStrideV, d.StrideV},
			put{fWindowW, d.WindowW}, put{fWindowH, d.WindowH})
	} else {
		puts = append(puts, put{fUpsampleH, d.UpsampleH}, put{fUpsampleV, d.UpsampleV})
	}
	puts = append(puts,
		put{fConstPadding, boolInt(d.ConstPadding)},
		put{fConstValue, constValue(d)},
	)
	if d.PostMAC.Use {
		puts = append(puts,
			put{fMACAIsOne, boolInt(d.PostMAC.AIsOne)},
			put{fMACBIsZero, boolInt(d.PostMAC.BIsZero)},
			put{fMACFrac, d.PostMAC.Frac},
		)
	}
	puts = append(puts,
		put{fWidth, d.Width},
		put{fHeight, d.Height},
		put{fInputSize, p.InputSize},
		put{fChannels, d.Channels},
		put{fPadLeft, d.PadLeft},
		put{fPadTop, d.PadTop},
		put{fExtWidth, p.ExtWidth},
		put{fExtHeight, p.ExtHeight},
		put{fOutWidth, p.OutWidth},
		put{fOutHeight, p.OutHeight},
		put{fOutputType, int(d.OutputType)},
		put{fRowWidth, int(rowWidth)},
		put{fFeatureMapRows, p.FeatureMapRows},
		put{fMidResRows, p.MidResRows},
	)

	for _, pt := range puts {
		if pt.v < 0 {
			lo, hi := pt.f.Range()
			return nil, accel.OutOfRange(pt.f.Name, int64(pt.v), int64(lo), int64(hi))
		}
		if err := im.Put(pt.f, uint64(pt.v)); err != nil {
			return nil, err
		}
	}
	if d.PostMAC.Use {
		im.SetWord(offCal4, d.PostMAC.A)
		im.SetWord(offCal5, d.PostMAC.B)
	}
	im.SetWord(offFmap0, d.InputAddr)
	im.SetWord(offFmap1, d.OutputAddr)
	return im, nil
}

func constValue(d Descriptor) int {
	if !d.ConstPadding {
		return 0
	}
	return int(d.ConstValue)
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
