package main

import (
	"net/http"
	"time"

	"github.com/veilcampus/warden/moderation"
	"github.com/veilcampus/warden/moderation/audit"
	"github.com/veilcampus/warden/moderation/authority"
	"github.com/veilcampus/warden/moderation/engine"
	"github.com/veilcampus/warden/moderation/errs"
	"github.com/veilcampus/warden/moderation/fingerprint"
	"github.com/veilcampus/warden/moderation/ladder"

	"github.com/labstack/echo/v4"
)

// writeOutcome sends allowed outcomes as 200 and denials as 403; both carry the audit entry.
func writeOutcome(c echo.Context, out *moderation.Outcome) error {
	if !out.Allowed {
		return c.JSON(http.StatusForbidden, out)
	}
	return c.JSON(http.StatusOK, out)
}

func bind(c echo.Context, body any) error {
	if err := c.Bind(body); err != nil {
		return errs.Invalid("", "malformed request body")
	}
	return nil
}

func (srv *Server) HandleWhoami(c echo.Context) error {
	return c.JSON(http.StatusOK, currentModerator(c))
}

func (srv *Server) HandleListModerators(c echo.Context) error {
	l, err := srv.engine.ListModerators(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, l)
}

type appointBody struct {
	ModeratorID string `json:"moderator_id"`
	Role        string `json:"role"`
	ScopeType   string `json:"scope_type"`
	ScopeID     string `json:"scope_id"`
	Reason      string `json:"reason"`
}

func (srv *Server) HandleAppoint(c echo.Context) error {
	var body appointBody
	if err := bind(c, &body); err != nil {
		return err
	}
	out, err := srv.engine.Appoint(c.Request().Context(), currentModerator(c), engine.AppointRequest{
		ModeratorID: body.ModeratorID,
		Role:        authority.Role(body.Role),
		ScopeType:   authority.ScopeType(body.ScopeType),
		ScopeID:     body.ScopeID,
		Reason:      body.Reason,
	})
	if err != nil {
		return err
	}
	return writeOutcome(c, out)
}

func (srv *Server) HandleRemoveModerator(c echo.Context) error {
	out, err := srv.engine.RemoveModerator(c.Request().Context(), currentModerator(c), engine.RemoveModeratorRequest{
		ModeratorID: c.Param("id"),
		Reason:      c.QueryParam("reason"),
	})
	if err != nil {
		return err
	}
	return writeOutcome(c, out)
}

type punishBody struct {
	UserHash string `json:"user_hash"`
	// 0 or absent escalates automatically
	Level     int    `json:"level"`
	ScopeType string `json:"scope_type"`
	ScopeID   string `json:"scope_id"`
	Reason    string `json:"reason"`
}

func (srv *Server) HandlePunish(c echo.Context) error {
	var body punishBody
	if err := bind(c, &body); err != nil {
		return err
	}
	out, err := srv.engine.Punish(c.Request().Context(), currentModerator(c), engine.PunishRequest{
		UserHash:  body.UserHash,
		Level:     ladder.Level(body.Level),
		ScopeType: authority.ScopeType(body.ScopeType),
		ScopeID:   body.ScopeID,
		Reason:    body.Reason,
	})
	if err != nil {
		return err
	}
	return writeOutcome(c, out)
}

type reasonBody struct {
	Reason string `json:"reason"`
}

func (srv *Server) HandleUnban(c echo.Context) error {
	var body reasonBody
	if err := bind(c, &body); err != nil {
		return err
	}
	out, err := srv.engine.Unban(c.Request().Context(), currentModerator(c), engine.UnbanRequest{
		PunishmentID: c.Param("id"),
		Reason:       body.Reason,
	})
	if err != nil {
		return err
	}
	return writeOutcome(c, out)
}

type scopedBody struct {
	ScopeType string `json:"scope_type"`
	ScopeID   string `json:"scope_id"`
	Reason    string `json:"reason"`
	// content endpoints only
	AuthorHash string `json:"author_hash"`
}

func (srv *Server) HandleWarn(c echo.Context) error {
	var body scopedBody
	if err := bind(c, &body); err != nil {
		return err
	}
	out, err := srv.engine.WarnUser(c.Request().Context(), currentModerator(c), engine.WarnRequest{
		UserHash:  c.Param("hash"),
		ScopeType: authority.ScopeType(body.ScopeType),
		ScopeID:   body.ScopeID,
		Reason:    body.Reason,
	})
	if err != nil {
		return err
	}
	return writeOutcome(c, out)
}

type flagBody struct {
	Flags  []string `json:"flags"`
	Reason string   `json:"reason"`
}

func (srv *Server) HandleFlag(c echo.Context) error {
	var body flagBody
	if err := bind(c, &body); err != nil {
		return err
	}
	out, err := srv.engine.FlagUser(c.Request().Context(), currentModerator(c), engine.FlagRequest{
		UserHash: c.Param("hash"),
		Flags:    body.Flags,
		Reason:   body.Reason,
	})
	if err != nil {
		return err
	}
	return writeOutcome(c, out)
}

func (srv *Server) HandleInspect(c echo.Context) error {
	out, err := srv.engine.InspectUser(c.Request().Context(), currentModerator(c), engine.InspectRequest{
		UserHash: c.Param("hash"),
		Reason:   c.QueryParam("reason"),
	})
	if err != nil {
		return err
	}
	return writeOutcome(c, out)
}

func (srv *Server) contentAction(c echo.Context, restore bool) error {
	var body scopedBody
	if err := bind(c, &body); err != nil {
		return err
	}
	req := engine.ContentRequest{
		ContentID:  c.Param("id"),
		AuthorHash: body.AuthorHash,
		ScopeType:  authority.ScopeType(body.ScopeType),
		ScopeID:    body.ScopeID,
		Reason:     body.Reason,
	}
	var out *moderation.Outcome
	var err error
	if restore {
		out, err = srv.engine.RestoreContent(c.Request().Context(), currentModerator(c), req)
	} else {
		out, err = srv.engine.RemoveContent(c.Request().Context(), currentModerator(c), req)
	}
	if err != nil {
		return err
	}
	return writeOutcome(c, out)
}

func (srv *Server) HandleRemoveContent(c echo.Context) error {
	return srv.contentAction(c, false)
}

func (srv *Server) HandleRestoreContent(c echo.Context) error {
	return srv.contentAction(c, true)
}

func auditFilter(c echo.Context) (audit.Filter, error) {
	return audit.ParseFilter(audit.FilterParams{
		ModeratorID:    c.QueryParam("moderator"),
		ActionType:     c.QueryParam("action"),
		TargetUserHash: c.QueryParam("user"),
		MinSeverity:    c.QueryParam("min_severity"),
		StartDate:      c.QueryParam("start"),
		EndDate:        c.QueryParam("end"),
		Limit:          c.QueryParam("limit"),
	})
}

func (srv *Server) HandleAuditQuery(c echo.Context) error {
	f, err := auditFilter(c)
	if err != nil {
		return err
	}
	l, err := srv.engine.QueryAudit(c.Request().Context(), currentModerator(c), f)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, l)
}

func (srv *Server) HandleAuditExport(c echo.Context) error {
	f, err := auditFilter(c)
	if err != nil {
		return err
	}
	out, err := srv.engine.ExportAudit(c.Request().Context(), currentModerator(c), f)
	if err != nil {
		return err
	}
	c.Response().Header().Set(echo.HeaderContentDisposition, `attachment; filename="warden-audit.csv"`)
	return c.Blob(http.StatusOK, "text/csv; charset=utf-8", []byte(out))
}

func (srv *Server) HandleAuditSummary(c echo.Context) error {
	f, err := auditFilter(c)
	if err != nil {
		return err
	}
	sum, err := srv.engine.AuditSummary(c.Request().Context(), currentModerator(c), f)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, sum)
}

func parseUserAction(raw string) (ladder.UserAction, error) {
	switch a := ladder.UserAction(raw); a {
	case ladder.UserPost, ladder.UserComment, ladder.UserLike, ladder.UserChat:
		return a, nil
	default:
		return "", errs.Invalid("action", "unknown user action %q", raw)
	}
}

func (srv *Server) HandleCanUserAct(c echo.Context) error {
	user := c.QueryParam("user")
	if user == "" {
		return errs.Invalid("user", "user hash is required")
	}
	action, err := parseUserAction(c.QueryParam("action"))
	if err != nil {
		return err
	}
	d, err := srv.engine.CanUserAct(c.Request().Context(), user, c.QueryParam("territory"), action)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, d)
}

type visibility struct {
	Visible bool `json:"visible"`
}

func (srv *Server) HandleIsContentVisible(c echo.Context) error {
	author := c.QueryParam("author")
	if author == "" {
		return errs.Invalid("author", "author hash is required")
	}
	ok, err := srv.engine.IsContentVisible(c.Request().Context(), c.QueryParam("viewer"), author, c.QueryParam("territory"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, visibility{Visible: ok})
}

type effectiveResponse struct {
	Punishment *moderation.Punishment `json:"punishment"`
}

func (srv *Server) HandleEffectivePunishment(c echo.Context) error {
	user := c.QueryParam("user")
	if user == "" {
		return errs.Invalid("user", "user hash is required")
	}
	p, err := srv.engine.EffectivePunishment(c.Request().Context(), user, c.QueryParam("territory"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, effectiveResponse{Punishment: p})
}

type activityBody struct {
	UserHash        string     `json:"user_hash"`
	Kind            string     `json:"kind"`
	ContentKind     string     `json:"content_kind"`
	At              *time.Time `json:"at"`
	TZOffsetMinutes int        `json:"tz_offset_minutes"`
}

func (srv *Server) HandleRecordActivity(c echo.Context) error {
	var body activityBody
	if err := bind(c, &body); err != nil {
		return err
	}
	act := fingerprint.Activity{Kind: body.Kind, ContentKind: body.ContentKind}
	if body.At != nil {
		act.At = *body.At
	}
	prof, err := srv.engine.RecordActivity(c.Request().Context(), body.UserHash, act, body.TZOffsetMinutes)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, prof)
}
