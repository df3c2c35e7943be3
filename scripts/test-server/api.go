package main

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// crocodileAPI serves the endpoints used by examples/crocodiles.yaml and
// examples/healthcheck.yaml.
type crocodileAPI struct {
	log *zap.Logger

	mu     sync.Mutex
	nextID int
	users  map[string]string
	tokens map[string]string
	crocs  map[string]map[int]crocodile
}

type crocodile struct {
	ID          int    `json:"id"`
	Name        string `json:"name"`
	Sex         string `json:"sex"`
	DateOfBirth string `json:"date_of_birth"`
	Age         int    `json:"age"`
}

func newCrocodileAPI(log *zap.Logger) *crocodileAPI {
	return &crocodileAPI{
		log:    log,
		users:  make(map[string]string),
		tokens: make(map[string]string),
		crocs:  make(map[string]map[int]crocodile),
	}
}

func (a *crocodileAPI) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/status/200", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.Write([]byte("OK"))
	})
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("healthy"))
	})
	mux.HandleFunc("/healthcheck", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("WORKING. Feel free to browse."))
	})
	mux.HandleFunc("/user/register/", a.register)
	mux.HandleFunc("/auth/token/login/", a.login)
	mux.HandleFunc("/public/crocodiles/", a.publicCrocodile)
	mux.HandleFunc("/my/crocodiles/", a.myCrocodiles)
	return mux
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}

func (a *crocodileAPI) register(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	username, password := r.FormValue("username"), r.FormValue("password")
	if username == "" || password == "" {
		writeError(w, http.StatusBadRequest, "username and password are required")
		return
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if _, ok := a.users[username]; ok {
		writeError(w, http.StatusBadRequest, "user already exists")
		return
	}
	a.users[username] = password
	a.log.Debug("user registered", zap.String("username", username))
	writeJSON(w, http.StatusCreated, map[string]string{
		"username":   username,
		"first_name": r.FormValue("first_name"),
		"last_name":  r.FormValue("last_name"),
	})
}

func (a *crocodileAPI) login(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	username := r.FormValue("username")

	a.mu.Lock()
	defer a.mu.Unlock()
	if pw, ok := a.users[username]; !ok || pw != r.FormValue("password") {
		writeError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}
	token := uuid.NewString()
	a.tokens[token] = username
	writeJSON(w, http.StatusOK, map[string]string{"access": token})
}

func (a *crocodileAPI) publicCrocodile(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(strings.Trim(strings.TrimPrefix(r.URL.Path, "/public/crocodiles/"), "/"))
	if err != nil || id < 1 {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	writeJSON(w, http.StatusOK, crocodile{
		ID:          id,
		Name:        "Croc " + strconv.Itoa(id),
		Sex:         "M",
		DateOfBirth: "2001-01-01",
		Age:         id + 5,
	})
}

func (a *crocodileAPI) owner(r *http.Request) (string, bool) {
	token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	a.mu.Lock()
	defer a.mu.Unlock()
	user, ok := a.tokens[token]
	return user, ok
}

func (a *crocodileAPI) myCrocodiles(w http.ResponseWriter, r *http.Request) {
	user, ok := a.owner(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	rest := strings.Trim(strings.TrimPrefix(r.URL.Path, "/my/crocodiles/"), "/")
	a.mu.Lock()
	defer a.mu.Unlock()
	owned := a.crocs[user]
	if owned == nil {
		owned = make(map[int]crocodile)
		a.crocs[user] = owned
	}

	if rest == "" {
		switch r.Method {
		case http.MethodPost:
			a.nextID++
			c := crocodile{
				ID:          a.nextID,
				Name:        r.FormValue("name"),
				Sex:         r.FormValue("sex"),
				DateOfBirth: r.FormValue("date_of_birth"),
			}
			owned[c.ID] = c
			writeJSON(w, http.StatusCreated, c)
		case http.MethodGet:
			list := make([]crocodile, 0, len(owned))
			for _, c := range owned {
				list = append(list, c)
			}
			writeJSON(w, http.StatusOK, list)
		default:
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		}
		return
	}

	id, err := strconv.Atoi(rest)
	if err != nil {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	c, exists := owned[id]
	if !exists {
		writeError(w, http.StatusNotFound, "not found")
		return
	}

	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, c)
	case http.MethodPatch, http.MethodPut:
		if name := updatedName(r); name != "" {
			c.Name = name
		}
		owned[id] = c
		writeJSON(w, http.StatusOK, c)
	case http.MethodDelete:
		delete(owned, id)
		w.WriteHeader(http.StatusNoContent)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

// updatedName reads the new name from a JSON or form encoded body.
func updatedName(r *http.Request) string {
	if strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		var body struct {
			Name string `json:"name"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			return ""
		}
		return body.Name
	}
	return r.FormValue("name")
}
