package dashboard

import (
	"time"

	"github.com/zulandar/cpg/internal/climate"
	"github.com/zulandar/cpg/internal/models"
	"github.com/zulandar/cpg/internal/product"
	"github.com/zulandar/cpg/internal/session"
)

// SessionRow holds session data for the list view.
type SessionRow struct {
	ID                string     `json:"id"`
	RunType           string     `json:"run_type"`
	ProdType          string     `json:"prod_type"`
	State             string     `json:"state"`
	Status            string     `json:"status"`
	StatusDesc        string     `json:"status_desc"`
	Terminated        bool       `json:"terminated"`
	StartAt           time.Time  `json:"start_at"`
	LastUpdated       time.Time  `json:"last_updated"`
	PendingExpiration *time.Time `json:"pending_expiration,omitempty"`
}

func sessionRow(r models.CPGSession) SessionRow {
	rt, _ := climate.RunTypeFromValue(r.RunType)
	st := climate.StateFromValue(r.State)
	code := climate.StatusFromValue(r.Status)
	return SessionRow{
		ID:                r.ID,
		RunType:           rt.String(),
		ProdType:          climate.PeriodType(r.ProdType).String(),
		State:             st.String(),
		Status:            code.String(),
		StatusDesc:        r.StatusDesc,
		Terminated:        climate.IsTerminated(st, code),
		StartAt:           r.StartAt,
		LastUpdated:       r.LastUpdated,
		PendingExpiration: r.PendingExpire,
	}
}

// SessionDetail is the full view of one session.
type SessionDetail struct {
	SessionRow
	GlobalConfig climate.GlobalConfig            `json:"global_config"`
	Setting      climate.ProductSetting          `json:"setting"`
	Report       *climate.ReportEnvelope         `json:"report,omitempty"`
	Products     map[climate.Source]*product.Set `json:"products,omitempty"`
	Unsent       map[climate.Source]int          `json:"unsent,omitempty"`
}

func sessionDetail(s *session.Session) SessionDetail {
	d := SessionDetail{
		SessionRow: SessionRow{
			ID:          s.ID(),
			RunType:     s.RunType().String(),
			ProdType:    s.ProdType().String(),
			State:       s.CurrentState().String(),
			Status:      s.CurrentStatus().Code.String(),
			StatusDesc:  s.CurrentStatus().Description,
			Terminated:  s.IsTerminated(),
			StartAt:     s.StartedAt(),
			LastUpdated: s.LastUpdated(),
		},
		GlobalConfig: s.GlobalConfig(),
		Setting:      s.Setting(),
	}
	if pe := s.PendingExpiration(); !pe.IsZero() {
		d.PendingExpiration = &pe
	}
	if r := s.ReportData(); r != nil {
		if env, err := climate.Wrap(r); err == nil {
			d.Report = &env
		}
	}
	if pd := s.ProdData(); !pd.Empty() {
		d.Products = pd.Sets
		d.Unsent = make(map[climate.Source]int, len(pd.Sets))
		for ch, set := range pd.Sets {
			d.Unsent[ch] = set.NumUnsent()
		}
	}
	return d
}
