package jls

import (
	"fmt"
	"math"
	"sort"
)

// CopyOptions configures Copy's progress reporting.
type CopyOptions struct {
	// Progress, if set, is called after each signal finishes copying with a
	// value in [0,1].
	Progress func(fraction float64)
	// Message, if set, is called with human-readable status as Copy runs.
	Message func(msg string)
	ReaderOptions ReaderOptions
	WriterOptions WriterOptions
}

// Copy rewrites the Log at srcPath into a fresh Log at dstPath by reading
// each source and signal definition and every recorded sample, annotation,
// timestamp, and user data record, and replaying them into a new Writer. A
// non-nil return indicates failure; dstPath may be left in a partially
// written state.
func Copy(srcPath, dstPath string, opts CopyOptions) error {
	msg := opts.Message
	if msg == nil {
		msg = func(string) {}
	}
	progress := opts.Progress
	if progress == nil {
		progress = func(float64) {}
	}

	r, err := Open(srcPath, opts.ReaderOptions)
	if err != nil {
		return fmt.Errorf("jls: copy: open source: %w", err)
	}
	defer r.Close()

	w, err := Create(dstPath, opts.WriterOptions)
	if err != nil {
		return fmt.Errorf("jls: copy: create destination: %w", err)
	}

	msg("copying sources")
	for _, s := range r.Sources() {
		if err := w.SourceDef(s); err != nil {
			w.Close()
			return fmt.Errorf("jls: copy: source_def: %w", err)
		}
	}

	signals := r.Signals()
	msg(fmt.Sprintf("copying %d signal(s)", len(signals)))
	for _, sig := range signals {
		if err := w.SignalDef(sig); err != nil {
			w.Close()
			return fmt.Errorf("jls: copy: signal_def %d: %w", sig.SignalID, err)
		}
	}

	for i, sig := range signals {
		if err := copySignal(r, w, sig); err != nil {
			w.Close()
			return fmt.Errorf("jls: copy: signal %d: %w", sig.SignalID, err)
		}
		progress(float64(i+1) / float64(len(signals)))
	}

	metas := make([]uint16, 0, len(r.userDataChains))
	for meta := range r.userDataChains {
		metas = append(metas, meta)
	}
	sort.Slice(metas, func(i, j int) bool { return metas[i] < metas[j] })
	for _, meta := range metas {
		if err := r.UserData(meta, w.UserData); err != nil {
			w.Close()
			return fmt.Errorf("jls: copy: user_data 0x%04x: %w", meta, err)
		}
	}

	if err := w.Close(); err != nil {
		return fmt.Errorf("jls: copy: close destination: %w", err)
	}
	return nil
}

func copySignal(r *Reader, w *Writer, sig Signal) error {
	if sig.Kind == KindFSR && !sig.OmitData {
		if err := copyFSRData(r, w, sig); err != nil {
			return err
		}
	}

	n, err := r.TmapLength(sig.SignalID)
	if err != nil {
		return err
	}
	for i := 0; i < n; i++ {
		e, err := r.TmapGet(sig.SignalID, i)
		if err != nil {
			return err
		}
		if err := w.UTC(sig.SignalID, e.SampleID, e.Timestamp); err != nil {
			return err
		}
	}

	if err := r.Annotations(sig.SignalID, math.MinInt64, func(a Annotation) error {
		return w.Annotation(sig.SignalID, a)
	}); err != nil {
		return err
	}

	return nil
}

func copyFSRData(r *Reader, w *Writer, sig Signal) error {
	entries := fsrDataEntries(r, sig.SignalID)
	for _, e := range entries {
		values, err := r.FSR(sig.SignalID, e.FirstID, int(e.Count))
		if err != nil {
			return err
		}
		raw := make([]byte, sig.DataType.BytesForNSamples(len(values)))
		for i, v := range values {
			if err := sig.DataType.WriteSample(raw, i, v); err != nil {
				return err
			}
		}
		if err := w.FSR(sig.SignalID, e.FirstID, raw, len(values)); err != nil {
			return err
		}
	}
	return nil
}

// fsrDataEntries exposes a signal's raw-data chunk index to Copy, which
// needs to page through ranges the same way the reader itself does rather
// than re-reading one sample at a time.
func fsrDataEntries(r *Reader, signalID uint16) []indexRecord {
	cat := r.signals[signalID]
	if cat == nil {
		return nil
	}
	return cat.dataEntries
}
