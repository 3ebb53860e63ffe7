// Package control exposes the receiver's runtime settings over HTTP.
package control

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/julienschmidt/httprouter"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/norasector/gnmax/pkg/gnmax"
	"github.com/norasector/gnmax/pkg/gnmax/device"
)

// Controller is the part of *gnmax.Receiver the server drives.
type Controller interface {
	SetBias(bias int) error
	SetAntenna(antenna int) error
	SetFrequency(freqHz float64) error
	SetBandwidth(bwHz int) error
	Status() gnmax.Status
}

type Server struct {
	ctl    Controller
	port   int
	srv    *http.Server
	logger zerolog.Logger
}

func NewServer(port int, ctl Controller) *Server {
	s := &Server{
		ctl:    ctl,
		port:   port,
		srv:    &http.Server{Addr: fmt.Sprintf(":%d", port)},
		logger: log.Logger.With().Str("component", "control").Logger(),
	}
	s.srv.Handler = s.Handler()
	return s
}

func (s *Server) Handler() http.Handler {
	handler := httprouter.New()

	handler.GET("/status", func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		s.writeStatus(w)
	})

	handler.PUT("/bias/:value", s.intSetting("value", s.ctl.SetBias))
	handler.PUT("/antenna/:value", s.intSetting("value", s.ctl.SetAntenna))
	handler.PUT("/bandwidth/:hz", s.intSetting("hz", s.ctl.SetBandwidth))

	handler.PUT("/frequency/:hz", func(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
		hz, err := strconv.ParseFloat(params.ByName("hz"), 64)
		if err != nil || hz < 0 {
			http.Error(w, fmt.Sprintf("bad frequency %q", params.ByName("hz")), http.StatusBadRequest)
			return
		}
		s.apply(w, s.ctl.SetFrequency(hz))
	})

	return handler
}

func (s *Server) intSetting(name string, set func(int) error) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
		v, err := strconv.Atoi(params.ByName(name))
		if err != nil {
			http.Error(w, fmt.Sprintf("bad value %q", params.ByName(name)), http.StatusBadRequest)
			return
		}
		s.apply(w, set(v))
	}
}

func (s *Server) apply(w http.ResponseWriter, err error) {
	switch {
	case err == nil:
		s.writeStatus(w)
	case errors.Is(err, device.ErrConfig):
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
	default:
		s.logger.Error().Err(err).Msg("setting failed")
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func (s *Server) writeStatus(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(s.ctl.Status()); err != nil {
		s.logger.Warn().Err(err).Msg("failed to write status")
	}
}

func (s *Server) Stop(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

func (s *Server) Run(ctx context.Context) error {
	s.logger.Info().Int("port", s.port).Msg("control server listening")

	err := s.srv.ListenAndServe()
	switch {
	case err == http.ErrServerClosed:
		return nil
	default:
		return err
	}
}
