package handlers

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"marrowai-server/internal/directory"
	"marrowai-server/internal/utils"
)

// DoctorHandler serves the specialist directory.
type DoctorHandler struct {
	dir *directory.Directory
}

// NewDoctorHandler creates a new DoctorHandler.
func NewDoctorHandler(dir *directory.Directory) *DoctorHandler {
	return &DoctorHandler{dir: dir}
}

// Search handles GET /api/doctors?q=&specialty=&page=&pageSize=.
func (h *DoctorHandler) Search(c *gin.Context) {
	page, err := optionalInt(c.Query("page"))
	if err != nil {
		utils.BadRequest(c, "page must be a number")
		return
	}
	pageSize, err := optionalInt(c.Query("pageSize"))
	if err != nil {
		utils.BadRequest(c, "pageSize must be a number")
		return
	}

	utils.Success(c, "", h.dir.Search(directory.Query{
		Term:      c.Query("q"),
		Specialty: c.Query("specialty"),
		Page:      page,
		PageSize:  pageSize,
	}))
}

// Get handles GET /api/doctors/:id.
func (h *DoctorHandler) Get(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		utils.BadRequest(c, "Invalid doctor id")
		return
	}
	doc, ok := h.dir.ByID(id)
	if !ok {
		utils.NotFound(c, "Doctor not found")
		return
	}
	utils.Success(c, "", doc)
}

func optionalInt(s string) (int, error) {
	if s == "" {
		return 0, nil
	}
	return strconv.Atoi(s)
}
