package transmit

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"github.com/zulandar/cpg/internal/climate"
	"github.com/zulandar/cpg/internal/product"
)

// NWWSSender stores local NWWS products in the text archive and forwards the
// rest to the OUP spool.
type NWWSSender struct {
	Site     string
	Archive  TextArchive
	OUP      Forwarder
	Recorder Recorder
	Logger   zerolog.Logger
	Now      func() time.Time
}

func (s *NWWSSender) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

// Send disseminates one product and updates its status in place. A SENT
// product is left alone.
func (s *NWWSSender) Send(ctx context.Context, sessionID string, p *product.Product, operational bool, user string) error {
	if p.IsSent() {
		return nil
	}
	h, body, err := ParseProduct(p.Text)
	if err != nil {
		p.Record(product.ActionSend, err.Error(), user, s.now())
		return fmt.Errorf("transmit: nwws %s: %w", p.Key, err)
	}
	log := s.Logger.With().Str("session_id", sessionID).Str("afos_id", h.AFOSID).Str("node", h.Node).Logger()

	if h.IsLocal() {
		log.Info().Str("origin", h.Origin()).Msg("transmit: local product")
		text := LocalText(h, s.Site, body, s.now())
		if p.Status != product.StatusStored {
			if s.Archive.Write(ctx, p.Key, text, operational) == ArchiveFailure {
				desc := fmt.Sprintf("Store the climate product: %s to TextDB failed", p.Key)
				p.Record(product.ActionStore, desc, user, s.now())
				return errors.New(desc)
			}
			desc := fmt.Sprintf("Storing Climate Products with PIL [%s] to textdb successfully.", p.Key)
			p.SetStatus(product.StatusStored, "")
			p.Record(product.ActionStore, desc, user, s.now())
			log.Info().Msg("transmit: stored in text archive")
		}
		if err := s.record(ctx, sessionID, p, text, user); err != nil {
			return err
		}
		p.SetStatus(product.StatusSent, "")
		p.Record(product.ActionSend, "local product stored", user, s.now())
		return nil
	}

	if err := s.OUP.Forward(ctx, h, p.Text, operational); err != nil {
		desc := fmt.Sprintf("Transmit to NWWS failed with exception: %v", err)
		p.Record(product.ActionSend, desc, user, s.now())
		return errors.New(desc)
	}
	if err := s.record(ctx, sessionID, p, p.Text, user); err != nil {
		return err
	}
	p.SetStatus(product.StatusSent, "")
	p.Record(product.ActionSend, "forwarded to OUP", user, s.now())
	log.Info().Msg("transmit: forwarded to OUP")
	return nil
}

func (s *NWWSSender) record(ctx context.Context, sessionID string, p *product.Product, text, user string) error {
	if s.Recorder == nil {
		return nil
	}
	err := s.Recorder.Record(ctx, SentRecord{
		SessionID:  sessionID,
		ProdID:     p.Key,
		Channel:    string(climate.SourceNWWS),
		FileName:   p.FileName,
		Text:       text,
		User:       user,
		PeriodType: int(p.PeriodType),
	})
	if err != nil {
		p.Record(product.ActionSend, fmt.Sprintf("Insert the record: %s failed", p.Key), user, s.now())
		return err
	}
	return nil
}

// NWRSender copies radio products to <Dir>/<CopyTo>/<file> for the NWR
// console to pick up.
type NWRSender struct {
	Dir      string
	CopyTo   string
	Recorder Recorder
	Logger   zerolog.Logger
	Now      func() time.Time
}

// FileName returns the file an NWR product is written to.
func FileName(p *product.Product) string {
	if p.FileName != "" {
		return filepath.Base(p.FileName)
	}
	return p.Key + ".txt"
}

// Send implements the session sender for the NWR channel. Practice runs are
// written under a practice subdirectory.
func (s *NWRSender) Send(ctx context.Context, sessionID string, p *product.Product, operational bool, user string) error {
	if p.IsSent() {
		return nil
	}
	now := time.Now().UTC()
	if s.Now != nil {
		now = s.Now().UTC()
	}
	dir := filepath.Join(s.Dir, s.CopyTo)
	if !operational {
		dir = filepath.Join(s.Dir, "practice", s.CopyTo)
	}
	name := FileName(p)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("transmit: nwr %s: %w", p.Key, err)
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(p.Text), 0o644); err != nil {
		p.Record(product.ActionSend, "copy to NWR failed", user, now)
		return fmt.Errorf("transmit: nwr %s: %w", p.Key, err)
	}
	if s.Recorder != nil {
		err := s.Recorder.Record(ctx, SentRecord{
			SessionID:  sessionID,
			ProdID:     p.Key,
			Channel:    string(climate.SourceNWR),
			FileName:   name,
			Text:       p.Text,
			User:       user,
			PeriodType: int(p.PeriodType),
		})
		if err != nil {
			return err
		}
	}
	p.FileName = name
	p.SetStatus(product.StatusSent, "")
	p.Record(product.ActionSend, "copied to "+path, user, now)
	s.Logger.Info().Str("session_id", sessionID).Str("product", p.Key).Str("path", path).Msg("transmit: nwr product copied")
	return nil
}
