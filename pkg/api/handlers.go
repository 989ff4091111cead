package api

import (
	"fmt"
	"io"
	"strconv"

	"github.com/gofiber/fiber/v3"

	"github.com/anomi-sec/anomi/pkg/model"
)

// attacksPerJobCap bounds the per-job findings payload for very large
// uploads.
const attacksPerJobCap = 1000

func (s *Server) handleIngestLog(c fiber.Ctx) error {
	var req struct {
		Log      string `json:"log"`
		Hostname string `json:"hostname"`
		IP       string `json:"ip"`
	}
	if err := c.Bind().Body(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request"})
	}
	if req.Hostname == "" {
		req.Hostname = "unknown"
	}
	if req.IP == "" {
		req.IP = c.IP()
	}

	event, err := s.gateway.IngestSingle(c.Context(), req.Log, req.Hostname, req.IP)
	if err != nil {
		return c.Status(statusForError(err)).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(fiber.Map{
		"status":   "received",
		"event_id": event.ID,
		"analysis": event.Analysis,
	})
}

func (s *Server) handleUpload(c fiber.Ctx) error {
	fh, err := c.FormFile("file")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "file field is required"})
	}

	f, err := fh.Open()
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "could not read upload"})
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "could not read upload"})
	}

	result, err := s.gateway.IngestBatch(c.Context(), fh.Filename, data)
	if err != nil {
		return c.Status(statusForError(err)).JSON(fiber.Map{"success": false, "error": err.Error()})
	}
	return c.JSON(fiber.Map{
		"success": true,
		"job_id":  result.Job.JobID,
		"results": fiber.Map{
			"total_records":     result.Job.TotalRecords,
			"attacks_detected":  result.Job.AttacksDetected,
			"normal_traffic":    result.Job.NormalTraffic,
			"attack_percentage": result.Job.AttackPercentage,
			"model_used":        result.Profile,
			"detailed_logs":     result.Detailed,
		},
	})
}

func (s *Server) handleListJobs(c fiber.Ctx) error {
	jobs, err := s.store.ListJobs(c.Context())
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	if jobs == nil {
		jobs = []model.Job{}
	}
	return c.JSON(fiber.Map{"jobs": jobs})
}

func (s *Server) handleGetJob(c fiber.Ctx) error {
	jobID := c.Params("id")

	job, err := s.store.GetJob(c.Context(), jobID)
	if err != nil {
		return c.Status(statusForError(err)).JSON(fiber.Map{"error": err.Error()})
	}

	limit := attacksPerJobCap
	if q := c.Query("limit"); q != "" {
		if n, err := strconv.Atoi(q); err == nil && n > 0 && n < attacksPerJobCap {
			limit = n
		}
	}
	attacks, err := s.store.AttacksForJob(c.Context(), jobID, limit)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	if attacks == nil {
		attacks = []model.Attack{}
	}
	return c.JSON(fiber.Map{"job": job, "attacks": attacks})
}

func (s *Server) handleListAgents(c fiber.Ctx) error {
	agents := s.registry.List(s.cfg.StalenessWindow, s.cfg.EvictionThreshold)
	return c.JSON(fiber.Map{"agents": agents, "count": len(agents)})
}

func (s *Server) handleLiveLogs(c fiber.Ctx) error {
	limit := 0
	if q := c.Query("limit"); q != "" {
		if n, err := strconv.Atoi(q); err == nil && n > 0 {
			limit = n
		}
	}
	events := s.live.Snapshot(limit)
	return c.JSON(fiber.Map{"logs": events, "count": len(events)})
}

func (s *Server) handleStats(c fiber.Ctx) error {
	summary, err := s.reports.Totals(c.Context())
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(summary)
}

func (s *Server) handleExportAttacks(c fiber.Ctx) error {
	c.Set(fiber.HeaderContentType, "text/csv")
	c.Set(fiber.HeaderContentDisposition, `attachment; filename="attacks.csv"`)
	if err := s.reports.WriteAttacksCSV(c.Context(), c.Response().BodyWriter()); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	return nil
}

func (s *Server) handleExportLogs(c fiber.Ctx) error {
	c.Set(fiber.HeaderContentType, "text/csv")
	c.Set(fiber.HeaderContentDisposition, `attachment; filename="live_logs.csv"`)
	if err := s.reports.WriteLiveCSV(c.Response().BodyWriter()); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	return nil
}

func (s *Server) handleAgentInstall(c fiber.Ctx) error {
	host := c.Hostname()
	if host == "" {
		host = "localhost:" + s.cfg.ListenPort
	}
	script := fmt.Sprintf(agentInstallScript, "http://"+host)
	c.Set(fiber.HeaderContentType, "text/x-shellscript")
	c.Set(fiber.HeaderContentDisposition, `attachment; filename="install_agent.sh"`)
	return c.SendString(script)
}
