// Package api exposes the ledger over HTTP. Callers identify themselves with
// the X-Caller header; verifying that identity is left to the deployment.
package api

import (
	"io"
	"net/http"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"CycleLedger/internal/fund"
)

// CallerHeader carries the caller's address.
const CallerHeader = "X-Caller"

type server struct {
	fund *fund.Manager
	log  *logrus.Entry
}

// NewRouter registers every ledger route.
func NewRouter(fm *fund.Manager, log *logrus.Entry) *mux.Router {
	s := &server{fund: fm, log: log}
	r := mux.NewRouter()

	r.HandleFunc("/health", healthHandler).Methods("GET")
	r.Handle("/metrics", promhttp.Handler()).Methods("GET")

	r.HandleFunc("/governance", s.getGovernance).Methods("GET")
	r.HandleFunc("/governance/fee", s.setFee).Methods("POST")
	r.HandleFunc("/governance/appoint", s.appoint).Methods("POST")
	r.HandleFunc("/governance/accept", s.accept).Methods("POST")

	r.HandleFunc("/projects", s.listProjects).Methods("GET")
	r.HandleFunc("/projects", s.createProject).Methods("POST")

	p := r.PathPrefix("/projects/{id:[0-9]+}").Subrouter()
	p.HandleFunc("", s.getProject).Methods("GET")
	p.HandleFunc("/configure", s.configure).Methods("POST")
	p.HandleFunc("/cycle", s.getCycle).Methods("GET")
	p.HandleFunc("/cycles", s.listCycles).Methods("GET")
	p.HandleFunc("/mods", s.getMods).Methods("GET")
	p.HandleFunc("/payments", s.pay).Methods("POST")
	p.HandleFunc("/print", s.print).Methods("POST")
	p.HandleFunc("/reserved", s.getReserved).Methods("GET")
	p.HandleFunc("/tap", s.tap).Methods("POST")
	p.HandleFunc("/funds", s.getFunds).Methods("GET")
	p.HandleFunc("/claimable", s.getClaimable).Methods("GET")
	p.HandleFunc("/redeem", s.redeem).Methods("POST")
	p.HandleFunc("/holders", s.listHolders).Methods("GET")
	p.HandleFunc("/holders/{address}", s.getHolder).Methods("GET")
	p.HandleFunc("/stake", s.stake).Methods("POST")
	p.HandleFunc("/unstake", s.unstake).Methods("POST")
	p.HandleFunc("/transfer", s.transfer).Methods("POST")
	p.HandleFunc("/owner", s.transferOwnership).Methods("POST")
	p.HandleFunc("/operators", s.setOperator).Methods("POST")
	p.HandleFunc("/events", s.listEvents).Methods("GET")

	return r
}

// Wrap adds access logging and panic recovery.
func Wrap(h http.Handler, accessLog io.Writer) http.Handler {
	recovered := handlers.RecoveryHandler(handlers.PrintRecoveryStack(true))(h)
	return handlers.CombinedLoggingHandler(accessLog, recovered)
}

func healthHandler(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
