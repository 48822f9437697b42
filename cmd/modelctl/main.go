package main

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/awnumar/memguard"
	"github.com/ruteri/tee-model-workload/api"
	"github.com/ruteri/tee-model-workload/api/workloadclient"
	"github.com/ruteri/tee-model-workload/cmd/flags"
	"github.com/ruteri/tee-model-workload/common"
	"github.com/ruteri/tee-model-workload/cryptoutils"
	"github.com/ruteri/tee-model-workload/envelope"
	"github.com/ruteri/tee-model-workload/interfaces"
	"github.com/ruteri/tee-model-workload/model"
	"github.com/ruteri/tee-model-workload/storage"
	"github.com/urfave/cli/v2"
)

var flagSWK = &cli.StringFlag{
	Name:    "swk",
	Usage:   "hex-encoded 32-byte session wrapping key",
	EnvVars: []string{"MODELCTL_SWK"},
}

var flagModelFile = &cli.StringFlag{
	Name:  "model",
	Usage: "path to the model file",
}

var flagStorage = &cli.StringSliceFlag{
	Name:  "storage",
	Usage: "artifact storage backend URI, repeatable",
}

var flagEnvelopeKey = &cli.StringFlag{
	Name:  "envelope-key",
	Usage: "path to the workload envelope public key (PEM). If empty it is fetched from the workload",
}

func main() {
	app := &cli.App{
		Name:    "modelctl",
		Usage:   "Seal models for the workload and control it remotely",
		Version: common.Version,
		Flags: []cli.Flag{
			flags.LogDebugFlag,
			flags.WorkloadAddrFlag,
		},
		Commands: []*cli.Command{
			{
				Name:   "keygen",
				Usage:  "Print a random session wrapping key (hex)",
				Action: keygen,
			},
			{
				Name:  "envelope-keygen",
				Usage: "Print a PEM private key usable as --envelope-key-file of the workload",
				Action: func(cCtx *cli.Context) error {
					key, err := cryptoutils.NewEnvelopeKey()
					if err != nil {
						return err
					}
					keyPEM, err := key.MarshalPEM()
					if err != nil {
						return err
					}
					defer memguard.WipeBytes(keyPEM)
					_, err = os.Stdout.Write(keyPEM)
					return err
				},
			},
			{
				Name:  "seal",
				Usage: "Wrap a model with a fresh data encryption key and wrap that key with the SWK",
				Flags: []cli.Flag{
					flagModelFile,
					flagSWK,
					flagStorage,
					flags.AEADFlag,
					&cli.StringFlag{Name: "out-model", Usage: "write the wrapped model to this file"},
					&cli.StringFlag{Name: "out-dek", Usage: "write the wrapped data encryption key to this file"},
				},
				Action: seal,
			},
			{
				Name:  "wrap-swk",
				Usage: "Seal the SWK to the workload envelope key",
				Flags: []cli.Flag{
					flagSWK,
					flagEnvelopeKey,
					&cli.BoolFlag{Name: "verify-quote", Usage: "verify the workload DCAP quote over the envelope key before sealing"},
					&cli.StringFlag{Name: "out", Usage: "write the wrapped SWK to this file instead of printing it as base64"},
				},
				Action: wrapSWK,
			},
			{
				Name:  "decrypt",
				Usage: "Submit wrapped artifacts to the workload",
				Flags: []cli.Flag{
					flagSWK,
					&cli.StringFlag{Name: "wrapped-model", Usage: "path to the wrapped model"},
					&cli.StringFlag{Name: "model-id", Usage: "content ID of the wrapped model in workload storage"},
					&cli.StringFlag{Name: "wrapped-dek", Usage: "path to the wrapped data encryption key"},
					&cli.StringFlag{Name: "dek-id", Usage: "content ID of the wrapped data encryption key in workload storage"},
					&cli.StringFlag{Name: "wrapped-swk", Usage: "path to a SWK sealed with wrap-swk --out"},
				},
				Action: decrypt,
			},
			{
				Name:  "predict",
				Usage: "Classify a JSON feature vector read from --input",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "input", Value: "-", Usage: "path to a JSON feature vector, '-' for stdin"},
				},
				Action: predict,
			},
			{
				Name:  "reset",
				Usage: "Destroy the model loaded in the workload",
				Action: func(cCtx *cli.Context) error {
					return workloadClient(cCtx).Reset(cCtx.Context)
				},
			},
			{
				Name:  "status",
				Usage: "Print the workload model state",
				Action: func(cCtx *cli.Context) error {
					state, err := workloadClient(cCtx).Status(cCtx.Context)
					if err != nil {
						return err
					}
					fmt.Println(state)
					return nil
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func workloadClient(cCtx *cli.Context) *workloadclient.Client {
	return workloadclient.New(cCtx.String(flags.WorkloadAddrFlag.Name))
}

func keygen(cCtx *cli.Context) error {
	key := make([]byte, envelope.KeySize)
	if _, err := rand.Read(key); err != nil {
		return err
	}
	defer memguard.WipeBytes(key)

	fmt.Println(hex.EncodeToString(key))
	return nil
}

func parseSWK(cCtx *cli.Context) ([]byte, error) {
	encoded := cCtx.String(flagSWK.Name)
	if encoded == "" {
		return nil, errors.New("--swk is required")
	}
	swk, err := hex.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("invalid --swk: %w", err)
	}
	if len(swk) != envelope.KeySize {
		memguard.WipeBytes(swk)
		return nil, fmt.Errorf("invalid --swk: %w", envelope.ErrInvalidKeySize)
	}
	return swk, nil
}

func seal(cCtx *cli.Context) error {
	logger := flags.SetupLogger(cCtx)

	modelPath := cCtx.String(flagModelFile.Name)
	if modelPath == "" {
		return errors.New("--model is required")
	}
	outModel := cCtx.String("out-model")
	outDEK := cCtx.String("out-dek")
	storageURIs := cCtx.StringSlice(flagStorage.Name)
	if outModel == "" && outDEK == "" && len(storageURIs) == 0 {
		return errors.New("one of --out-model, --out-dek or --storage is required")
	}

	aead, err := envelope.AEADByName(cCtx.String(flags.AEADFlag.Name))
	if err != nil {
		return err
	}

	swk, err := parseSWK(cCtx)
	if err != nil {
		return err
	}
	defer memguard.WipeBytes(swk)

	plaintext, err := os.ReadFile(modelPath)
	if err != nil {
		return fmt.Errorf("could not read model: %w", err)
	}
	defer memguard.WipeBytes(plaintext)

	if _, _, err := model.Parse(plaintext); err != nil {
		return fmt.Errorf("refusing to seal an invalid model: %w", err)
	}

	dek := memguard.NewBufferRandom(envelope.KeySize)
	defer dek.Destroy()

	wrappedModel, err := envelope.Seal(aead, plaintext, dek.Bytes())
	if err != nil {
		return err
	}
	wrappedDEK, err := envelope.Seal(aead, dek.Bytes(), swk)
	if err != nil {
		return err
	}

	if outModel != "" {
		if err := os.WriteFile(outModel, wrappedModel, 0o600); err != nil {
			return err
		}
	}
	if outDEK != "" {
		if err := os.WriteFile(outDEK, wrappedDEK, 0o600); err != nil {
			return err
		}
	}

	modelID := interfaces.ComputeID(wrappedModel)
	dekID := interfaces.ComputeID(wrappedDEK)

	if len(storageURIs) > 0 {
		locations := make([]interfaces.StorageBackendLocation, 0, len(storageURIs))
		for _, uri := range storageURIs {
			location, err := interfaces.NewStorageBackendLocation(uri)
			if err != nil {
				return err
			}
			locations = append(locations, location)
		}

		backend, err := storage.NewStorageBackendFactory(logger).CreateMultiBackend(locations)
		if err != nil {
			return err
		}
		if _, err := backend.Store(cCtx.Context, wrappedModel, interfaces.ModelType); err != nil {
			return fmt.Errorf("could not store wrapped model: %w", err)
		}
		if _, err := backend.Store(cCtx.Context, wrappedDEK, interfaces.KeyType); err != nil {
			return fmt.Errorf("could not store wrapped data encryption key: %w", err)
		}
	}

	fmt.Printf("model_id=%s\ndek_id=%s\n", modelID, dekID)
	return nil
}

func wrapSWK(cCtx *cli.Context) error {
	swk, err := parseSWK(cCtx)
	if err != nil {
		return err
	}
	defer memguard.WipeBytes(swk)

	publicKeyPEM, err := envelopePublicKey(cCtx)
	if err != nil {
		return err
	}

	if cCtx.Bool("verify-quote") {
		nonce := make([]byte, cryptoutils.MaxNonceSize)
		if _, err := rand.Read(nonce); err != nil {
			return err
		}
		quote, err := workloadClient(cCtx).Quote(cCtx.Context, nonce)
		if err != nil {
			return fmt.Errorf("could not fetch quote: %w", err)
		}
		reportData, err := cryptoutils.ReportDataForKey(publicKeyPEM, nonce)
		if err != nil {
			return err
		}
		measurements, err := cryptoutils.VerifyDCAPAttestation(reportData, quote)
		if err != nil {
			return fmt.Errorf("quote verification failed: %w", err)
		}
		encoded, err := json.Marshal(measurements)
		if err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "verified quote, measurements: %s\n", encoded)
	}

	wrapped, err := cryptoutils.SealToPublicKey(publicKeyPEM, swk)
	if err != nil {
		return err
	}

	if out := cCtx.String("out"); out != "" {
		return os.WriteFile(out, wrapped, 0o600)
	}
	fmt.Println(base64.StdEncoding.EncodeToString(wrapped))
	return nil
}

func envelopePublicKey(cCtx *cli.Context) ([]byte, error) {
	if path := cCtx.String(flagEnvelopeKey.Name); path != "" {
		return os.ReadFile(path)
	}
	return workloadClient(cCtx).EnvelopeKey(cCtx.Context)
}

func decrypt(cCtx *cli.Context) error {
	req := &api.DecryptRequest{
		ModelID: cCtx.String("model-id"),
		DEKID:   cCtx.String("dek-id"),
	}

	var err error
	if req.WrappedModel, err = readOptional(cCtx.String("wrapped-model")); err != nil {
		return err
	}
	if req.WrappedDEK, err = readOptional(cCtx.String("wrapped-dek")); err != nil {
		return err
	}
	if req.WrappedSWK, err = readOptional(cCtx.String("wrapped-swk")); err != nil {
		return err
	}
	if cCtx.String(flagSWK.Name) != "" {
		if req.SWK, err = parseSWK(cCtx); err != nil {
			return err
		}
		defer memguard.WipeBytes(req.SWK)
	}

	if err := req.Validate(); err != nil {
		return err
	}

	return workloadClient(cCtx).Decrypt(cCtx.Context, req)
}

func predict(cCtx *cli.Context) error {
	var in io.Reader = os.Stdin
	if path := cCtx.String("input"); path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()
		in = f
	}

	var features model.FeatureVector
	if err := json.NewDecoder(in).Decode(&features); err != nil {
		return fmt.Errorf("could not parse input: %w", err)
	}

	prediction, err := workloadClient(cCtx).Predict(cCtx.Context, features)
	if err != nil {
		return err
	}

	encoded, err := json.Marshal(api.PredictResponse{HighRisk: prediction})
	if err != nil {
		return err
	}
	fmt.Println(string(encoded))
	return nil
}

func readOptional(path string) ([]byte, error) {
	if path == "" {
		return nil, nil
	}
	return os.ReadFile(path)
}
