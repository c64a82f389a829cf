package uploads

import (
	"net/http"

	"github.com/mattjonesorg/ABLE-Expense-Tracker-sub000/internal/auth"
	"github.com/mattjonesorg/ABLE-Expense-Tracker-sub000/internal/errors"
	"github.com/mattjonesorg/ABLE-Expense-Tracker-sub000/internal/json"
)

type UploadHandler struct {
	svc *service
}

func NewUploadHandler(svc *service) *UploadHandler {
	return &UploadHandler{
		svc: svc,
	}
}

func (h *UploadHandler) PresignReceipt(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	accountID, err := auth.GetAccountID(ctx)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	presignRequest := PresignRequest{}
	if err := json.Read(r, &presignRequest); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	response, err := h.svc.PresignUpload(ctx, accountID, presignRequest)
	if err != nil {
		errors.RespondError(w, r, err)
		return
	}

	json.Write(w, http.StatusCreated, response)
}
