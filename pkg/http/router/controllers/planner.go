package controllers

import (
	"errors"
	"net/http"
	"strconv"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/julienschmidt/httprouter"
	helper "github.com/lintang-b-s/courierx/pkg/http/router/routerhelper"
	"go.uber.org/zap"
)

type plannerAPI struct {
	plannerService PlannerService
	log            *zap.Logger
	validate       *validator.Validate
	trans          ut.Translator
}

func New(plannerService PlannerService, log *zap.Logger) *plannerAPI {
	validate, trans := newRequestValidator()
	return &plannerAPI{
		plannerService: plannerService,
		log:            log,
		validate:       validate,
		trans:          trans,
	}
}

func (api *plannerAPI) Routes(group *helper.RouteGroup) {
	group.POST("/plan", api.plan)
	group.POST("/matrix", api.matrix)
	group.GET("/graph/nearest", api.nearest)
	group.GET("/ws/plan", api.wsPlan)
}

// plan godoc
//
//	@Summary		split pickup and delivery requests between couriers
//	@Description	solves the precedence constrained tour of every courier and returns their road paths
//	@Tags			planner
//	@Accept			json
//	@Produce		json
//	@Router			/plan [post]
func (api *plannerAPI) plan(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
	var request planRequest
	if err := api.readJSON(w, r, &request); err != nil {
		api.BadRequestResponse(w, r, err)
		return
	}
	if err := api.validateRequest(request); err != nil {
		api.BadRequestResponse(w, r, err)
		return
	}

	result, err := api.plannerService.Plan(r.Context(), request.toPlanInput(), nil)
	if err != nil {
		api.getStatusCode(w, r, err)
		return
	}

	if err := api.writeJSON(w, http.StatusOK, envelope{"data": result}, nil); err != nil {
		api.ServerErrorResponse(w, r, err)
		return
	}
}

// matrix godoc
//
//	@Summary		shortest path matrix between the depot and every request node
//	@Tags			planner
//	@Accept			json
//	@Produce		json
//	@Router			/matrix [post]
func (api *plannerAPI) matrix(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
	var request demandRequest
	if err := api.readJSON(w, r, &request); err != nil {
		api.BadRequestResponse(w, r, err)
		return
	}
	if err := api.validateRequest(request); err != nil {
		api.BadRequestResponse(w, r, err)
		return
	}

	result, err := api.plannerService.Matrix(r.Context(), request.toDemandInput())
	if err != nil {
		api.getStatusCode(w, r, err)
		return
	}

	if err := api.writeJSON(w, http.StatusOK, envelope{"data": result}, nil); err != nil {
		api.ServerErrorResponse(w, r, err)
		return
	}
}

// nearest godoc
//
//	@Summary	road node nearest to a coordinate
//	@Tags		graph
//	@Produce	json
//	@Param		lat	query	number	true	"latitude"
//	@Param		lon	query	number	true	"longitude"
//	@Router		/graph/nearest [get]
func (api *plannerAPI) nearest(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
	var (
		request nearestRequest
		err     error
	)

	query := r.URL.Query()
	request.Lat, err = strconv.ParseFloat(query.Get("lat"), 64)
	if err != nil {
		api.BadRequestResponse(w, r, errors.New("lat is required and must be a valid float"))
		return
	}
	request.Lon, err = strconv.ParseFloat(query.Get("lon"), 64)
	if err != nil {
		api.BadRequestResponse(w, r, errors.New("lon is required and must be a valid float"))
		return
	}
	if err := api.validateRequest(request); err != nil {
		api.BadRequestResponse(w, r, err)
		return
	}

	result, err := api.plannerService.Nearest(request.Lat, request.Lon)
	if err != nil {
		api.getStatusCode(w, r, err)
		return
	}

	if err := api.writeJSON(w, http.StatusOK, envelope{"data": result}, nil); err != nil {
		api.ServerErrorResponse(w, r, err)
		return
	}
}
