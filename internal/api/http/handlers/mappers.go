package handlers

import (
	"github.com/spec-kit/incident-service/internal/api/dto"
	"github.com/spec-kit/incident-service/internal/domain"
	"github.com/spec-kit/incident-service/internal/service"
)

func incidentSummary(incident *domain.Incident) dto.IncidentSummary {
	return dto.IncidentSummary{
		ID:         incident.ID,
		Title:      incident.Title,
		Status:     incident.Status,
		Priority:   incident.Priority,
		CategoryID: incident.CategoryID,
		ZoneID:     incident.ZoneID,
		IsPublic:   incident.IsPublic,
		Upvotes:    incident.Upvotes,
		SlaDue:     incident.SlaDue,
		CreatedAt:  incident.CreatedAt,
		UpdatedAt:  incident.UpdatedAt,
	}
}

func incidentDetail(detail *service.IncidentDetail) dto.IncidentDetailResponse {
	incident := detail.Incident
	resp := dto.IncidentDetailResponse{
		IncidentSummary: incidentSummary(incident),
		Description:     incident.Description,
		ReporterID:      incident.ReporterID,
		LocationLat:     incident.LocationLat,
		LocationLon:     incident.LocationLon,
		LocationText:    incident.LocationText,
		DuplicateOf:     incident.DuplicateOf,
		ResolvedAt:      incident.ResolvedAt,
		StatusLog:       make([]dto.StatusLogResponse, 0, len(detail.StatusLog)),
		Comments:        make([]dto.CommentResponse, 0, len(detail.Comments)),
		Responses:       make([]dto.ResponseResponse, 0, len(detail.Responses)),
		Photos:          make([]dto.PhotoResponse, 0, len(detail.Photos)),
	}
	for i := range detail.StatusLog {
		entry := &detail.StatusLog[i]
		resp.StatusLog = append(resp.StatusLog, dto.StatusLogResponse{
			ID:        entry.ID,
			OldStatus: entry.OldStatus,
			NewStatus: entry.NewStatus,
			ChangedBy: entry.ChangedBy,
			Note:      entry.Note,
			ChangedAt: entry.ChangedAt,
		})
	}
	for i := range detail.Comments {
		comment := &detail.Comments[i]
		resp.Comments = append(resp.Comments, commentResponse(comment))
	}
	for i := range detail.Responses {
		response := &detail.Responses[i]
		resp.Responses = append(resp.Responses, responseResponse(response))
	}
	for i := range detail.Photos {
		photo := &detail.Photos[i]
		resp.Photos = append(resp.Photos, dto.PhotoResponse{
			ID:       photo.ID,
			FileName: photo.FileName,
			FileSize: photo.FileSize,
			URL:      detail.PhotoURLs[photo.ID],
		})
	}
	return resp
}

func commentResponse(comment *domain.Comment) dto.CommentResponse {
	return dto.CommentResponse{
		ID:          comment.ID,
		CommenterID: comment.CommenterID,
		Message:     comment.Message,
		IsAnonymous: comment.IsAnonymous,
		CreatedAt:   comment.CreatedAt,
	}
}

func responseResponse(response *domain.Response) dto.ResponseResponse {
	return dto.ResponseResponse{
		ID:              response.ID,
		AuthorityUnitID: response.AuthorityUnitID,
		ResponderID:     response.ResponderID,
		Message:         response.Message,
		MediaPaths:      response.MediaPaths,
		CreatedAt:       response.CreatedAt,
	}
}

func assignmentResponse(assignment *domain.Assignment) dto.AssignmentResponse {
	return dto.AssignmentResponse{
		ID:              assignment.ID,
		IncidentID:      assignment.IncidentID,
		AuthorityUnitID: assignment.AuthorityUnitID,
		AssignedAt:      assignment.AssignedAt,
		Deadline:        assignment.Deadline,
		Accepted:        assignment.Accepted,
		AcceptedAt:      assignment.AcceptedAt,
		SupersededAt:    assignment.SupersededAt,
		Notes:           assignment.Notes,
	}
}

func unitResponse(unit *domain.AuthorityUnit) dto.UnitResponse {
	return dto.UnitResponse{
		ID:        unit.ID,
		Name:      unit.Name,
		ProfileID: unit.ProfileID,
		ZoneID:    unit.ZoneID,
		Active:    unit.Active,
	}
}
