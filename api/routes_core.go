package api

import (
	"encoding/json"
	"net/http"

	"github.com/rom8726/signoff"
)

// RegisterRuleRoutes mounts the folder-rule management endpoints.
func RegisterRuleRoutes(mux *http.ServeMux, engine *signoff.Engine) {
	mux.HandleFunc("POST /api/folder-rules", func(w http.ResponseWriter, req *http.Request) {
		HandleCreateFolderRule(engine)(w, req)
	})

	mux.HandleFunc("GET /api/folder-rules", func(w http.ResponseWriter, req *http.Request) {
		HandleListFolderRules(engine)(w, req)
	})

	mux.HandleFunc("GET /api/folder-rules/{id}", func(w http.ResponseWriter, req *http.Request) {
		HandleGetFolderRule(engine)(w, req)
	})

	mux.HandleFunc("PUT /api/folder-rules/{id}", func(w http.ResponseWriter, req *http.Request) {
		HandleUpdateFolderRule(engine)(w, req)
	})

	mux.HandleFunc("DELETE /api/folder-rules/{id}", func(w http.ResponseWriter, req *http.Request) {
		HandleDeleteFolderRule(engine)(w, req)
	})

	// Rule resolution and automatic workflow creation
	mux.HandleFunc("GET /api/folders/{id}/rule", func(w http.ResponseWriter, req *http.Request) {
		HandleGetApplicableRule(engine)(w, req)
	})

	mux.HandleFunc("POST /api/folders/{id}/auto-create", func(w http.ResponseWriter, req *http.Request) {
		HandleAutoCreate(engine)(w, req)
	})
}

func HandleCreateFolderRule(engine *signoff.Engine) func(http.ResponseWriter, *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		actor, ok := requireActor(w, r)
		if !ok {
			return
		}

		var params signoff.CreateFolderRuleParams
		if err := json.NewDecoder(r.Body).Decode(&params); err != nil {
			http.Error(w, "Invalid request body", http.StatusBadRequest)

			return
		}

		rule, err := engine.CreateFolderRule(ctx, params, actor)
		if err != nil {
			WriteError(w, err)

			return
		}

		writeJSON(w, http.StatusCreated, rule)
	}
}

func HandleListFolderRules(engine *signoff.Engine) func(http.ResponseWriter, *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		folderID := r.URL.Query().Get("folder_id")

		rules, err := engine.ListFolderRules(ctx, folderID)
		if err != nil {
			WriteError(w, err)

			return
		}

		writeJSON(w, http.StatusOK, rules)
	}
}

func HandleGetFolderRule(engine *signoff.Engine) func(http.ResponseWriter, *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		id := r.PathValue("id")

		rule, err := engine.GetFolderRule(ctx, id)
		if err != nil {
			WriteError(w, err)

			return
		}

		writeJSON(w, http.StatusOK, rule)
	}
}

func HandleUpdateFolderRule(engine *signoff.Engine) func(http.ResponseWriter, *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		id := r.PathValue("id")

		var params signoff.UpdateFolderRuleParams
		if err := json.NewDecoder(r.Body).Decode(&params); err != nil {
			http.Error(w, "Invalid request body", http.StatusBadRequest)

			return
		}

		rule, err := engine.UpdateFolderRule(ctx, id, params)
		if err != nil {
			WriteError(w, err)

			return
		}

		writeJSON(w, http.StatusOK, rule)
	}
}

func HandleDeleteFolderRule(engine *signoff.Engine) func(http.ResponseWriter, *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		id := r.PathValue("id")

		if err := engine.DeleteFolderRule(ctx, id); err != nil {
			WriteError(w, err)

			return
		}

		w.WriteHeader(http.StatusNoContent)
	}
}

func HandleGetApplicableRule(engine *signoff.Engine) func(http.ResponseWriter, *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		folderID := r.PathValue("id")

		rule, err := engine.ApplicableRule(ctx, folderID)
		if err != nil {
			WriteError(w, err)

			return
		}
		if rule == nil {
			http.Error(w, "No rule applies to this folder", http.StatusNotFound)

			return
		}

		writeJSON(w, http.StatusOK, rule)
	}
}

func HandleAutoCreate(engine *signoff.Engine) func(http.ResponseWriter, *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		folderID := r.PathValue("id")

		actor, ok := requireActor(w, r)
		if !ok {
			return
		}

		var req AutoCreateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "Invalid request body", http.StatusBadRequest)

			return
		}

		workflow, err := engine.AutoCreateForFile(ctx, req.FileID, folderID, actor)
		if err != nil {
			WriteError(w, err)

			return
		}
		if workflow == nil {
			w.WriteHeader(http.StatusNoContent)

			return
		}

		writeJSON(w, http.StatusCreated, workflow)
	}
}
