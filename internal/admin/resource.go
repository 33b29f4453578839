package admin

import (
	"context"
	"log"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"studytracker/internal/auth"
	"studytracker/internal/tracker"
)

type labeler interface {
	Label() string
}

// decoder is a request body that converts into an entity.
type decoder[T any] interface {
	decode() (T, error)
}

// resource wires the five CRUD routes of one registered model.
type resource[T labeler, R decoder[T]] struct {
	name   string
	withID func(T, string) T
	list   func(*gin.Context, tracker.Page) ([]T, error)
	get    func(context.Context, string) (T, error)
	create func(context.Context, T) (T, error)
	update func(context.Context, T) (T, error)
	remove func(context.Context, string) (tracker.DeleteResult, error)
}

func (res resource[T, R]) register(rg *gin.RouterGroup) {
	g := rg.Group("/" + res.name)
	g.GET("", res.handleList)
	g.GET("/:id", res.handleGet)
	g.POST("", res.handleCreate)
	g.PUT("/:id", res.handleUpdate)
	g.DELETE("/:id", res.handleDelete)
}

func pageFrom(c *gin.Context) tracker.Page {
	var p tracker.Page
	if v := c.Query("limit"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			p.Limit = parsed
		}
	}
	if v := c.Query("offset"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			p.Offset = parsed
		}
	}
	return p
}

// pathID returns the :id parameter, answering 404 itself when it is not a UUID.
func pathID(c *gin.Context) (string, bool) {
	id := c.Param("id")
	if _, err := uuid.Parse(id); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": tracker.ErrNotFound.Error()})
		return "", false
	}
	return id, true
}

// audit logs a committed write with the token subject that made it.
func audit(c *gin.Context, op, name, id string) {
	actor := "anonymous"
	if claims, ok := auth.ClaimsFrom(c); ok {
		actor = claims.Subject
	}
	log.Printf("admin %s: %s %s/%s", actor, op, name, id)
}

func (res resource[T, R]) bind(c *gin.Context) (T, bool) {
	var zero T
	var req R
	if err := c.ShouldBindJSON(&req); err != nil {
		if fields, ok := bindingErrors(err); ok {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request", "fields": fields})
			return zero, false
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return zero, false
	}
	entity, err := req.decode()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return zero, false
	}
	return entity, true
}

func (res resource[T, R]) handleList(c *gin.Context) {
	items, err := res.list(c, pageFrom(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": items})
}

func (res resource[T, R]) handleGet(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	item, err := res.get(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": item, "label": item.Label()})
}

func (res resource[T, R]) handleCreate(c *gin.Context) {
	entity, ok := res.bind(c)
	if !ok {
		return
	}
	item, err := res.create(c.Request.Context(), entity)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"data": item, "label": item.Label()})
}

func (res resource[T, R]) handleUpdate(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	entity, ok := res.bind(c)
	if !ok {
		return
	}
	item, err := res.update(c.Request.Context(), res.withID(entity, id))
	if err != nil {
		respondError(c, err)
		return
	}
	audit(c, "update", res.name, id)
	c.JSON(http.StatusOK, gin.H{"data": item, "label": item.Label()})
}

func (res resource[T, R]) handleDelete(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	out, err := res.remove(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	audit(c, "delete", res.name, id)
	c.JSON(http.StatusOK, gin.H{"deleted": gin.H{
		"staff":           out.Staff,
		"students":        out.Students,
		"study_records":   out.StudyRecordCount(),
		"subject_records": out.SubjectRecords,
	}})
}
