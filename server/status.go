package server

import (
	"encoding/json"
	"net/http"
)

type statusLink struct {
	Peer     string `json:"peer"`
	Dir      string `json:"dir"`
	LocalOut string `json:"local_out"`
	RemoteIn string `json:"remote_in"`
	Lanes    int    `json:"lanes"`
	Policy   string `json:"policy"`
}

type statusResponse struct {
	Width         int               `json:"width"`
	Height        int               `json:"height"`
	Cycle         uint64            `json:"cycle"`
	CurrentInputs map[string]uint64 `json:"current_inputs"`
	Outputs       map[string]uint64 `json:"outputs"`
	Links         []statusLink      `json:"links"`
}

// serveStatus renders a JSON diagnostics snapshot of the device: grid
// dimensions, current cycle, merged input-bus values, sampled outputs,
// and the active link table.
func (s *Server) serveStatus(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	width, height := s.device.Dims()
	resp := statusResponse{
		Width:         width,
		Height:        height,
		Cycle:         s.device.machine.Cycle(),
		CurrentInputs: map[string]uint64{},
		Outputs:       s.device.SampleOutputs(),
	}
	for _, name := range s.device.sortedInputNames() {
		resp.CurrentInputs[name] = s.device.currentInputs[name]
	}
	for _, l := range s.device.Links() {
		resp.Links = append(resp.Links, statusLink{
			Peer: l.Peer, Dir: dirName(l.Dir), LocalOut: l.LocalOut, RemoteIn: l.RemoteIn,
			Lanes: l.Lanes, Policy: l.Policy.String(),
		})
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}
