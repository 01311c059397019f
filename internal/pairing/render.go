package pairing

import (
	"fmt"
	"os"

	"github.com/mattn/go-isatty"
	"github.com/mdp/qrterminal/v3"
	"go.uber.org/zap"

	"github.com/getpaseo/paseod/internal/logging"
)

func logFields(offer ConnectionOffer, url string) []zap.Field {
	return []zap.Field{
		zap.String("server_id", offer.ServerID),
		zap.String("relay_endpoint", offer.RelayEndpoint),
		zap.String("pairing_url", url),
	}
}

// Announce logs the pairing URL for offer and, when stdout is an
// interactive terminal, also renders it as a QR code.
func Announce(log *logging.Logger, appBaseURL string, offer ConnectionOffer) error {
	url, err := offer.EncodeURL(appBaseURL)
	if err != nil {
		return err
	}
	log.Info("pairing offer ready", logFields(offer, url)...)

	if isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd()) {
		fmt.Fprintln(os.Stdout)
		qrterminal.GenerateWithConfig(url, qrterminal.Config{
			Level:          qrterminal.L,
			Writer:         os.Stdout,
			QuietZone:      1,
			HalfBlocks:     true,
			BlackChar:      qrterminal.BLACK_BLACK,
			WhiteChar:      qrterminal.WHITE_WHITE,
			BlackWhiteChar: qrterminal.BLACK_WHITE,
			WhiteBlackChar: qrterminal.WHITE_BLACK,
		})
		fmt.Fprintln(os.Stdout)
	}
	return nil
}
