package services

import (
	"crypto/md5"
	"fmt"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/hypernova-labs/tiss-service/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testProvider() *models.Provider {
	cnes := "1234567"
	return &models.Provider{
		ID:           uuid.New(),
		Name:         "Clinica Exemplo",
		CNPJ:         "12345678000195",
		ProviderCode: "PRE-001",
		CNES:         &cnes,
	}
}

func testOperator() *models.Operator {
	return &models.Operator{
		ID:          uuid.New(),
		Name:        "Operadora Saude",
		ANSRegistry: "123456",
		TISSVersion: "4.01.00",
	}
}

func testBatch(claims []models.Claim) *models.Batch {
	return &models.Batch{
		ID:          uuid.New(),
		BatchNumber: "L20250810-AB12CD34",
		Status:      models.BatchStatusReady,
		Claims:      claims,
	}
}

func testClaim(number string) models.Claim {
	return models.Claim{
		ID:          uuid.New(),
		ClaimNumber: number,
		CardNumber:  "998877665544",
		ServiceDate: time.Date(2025, 8, 1, 0, 0, 0, 0, time.UTC),
		Items: []models.ClaimItem{
			{
				Sequence:      1,
				ProcedureCode: "10101012",
				Description:   "Consulta em consultório",
				Quantity:      1,
				UnitAmount:    150.00,
				TotalAmount:   150.00,
			},
			{
				Sequence:      2,
				ProcedureCode: "40302040",
				Description:   "Hemograma completo",
				Quantity:      2,
				UnitAmount:    25.50,
				TotalAmount:   51.00,
			},
		},
		DeclaredAmount: 201.00,
	}
}

func TestBatchComposer_ComposeClaimBatch(t *testing.T) {
	composer := NewBatchComposer("4.01.00", testLogger())
	batch := testBatch([]models.Claim{testClaim("G-0001"), testClaim("G-0002")})

	message, err := composer.ComposeClaimBatch(batch, testProvider(), testOperator())
	require.NoError(t, err)

	t.Run("header identifies the transaction", func(t *testing.T) {
		assert.Contains(t, message, "<ans:tipoTransacao>ENVIO_LOTE_GUIAS</ans:tipoTransacao>")
		assert.Contains(t, message, "<ans:CNPJ>12345678000195</ans:CNPJ>")
		assert.Contains(t, message, "<ans:codigoPrestadorNaOperadora>PRE-001</ans:codigoPrestadorNaOperadora>")
		assert.Contains(t, message, "<ans:registroANS>123456</ans:registroANS>")
		assert.Contains(t, message, "<ans:Padrao>4.01.00</ans:Padrao>")
	})

	t.Run("transaction sequential has ten digits", func(t *testing.T) {
		match := regexp.MustCompile(`<ans:sequencialTransacao>(\d+)</ans:sequencialTransacao>`).FindStringSubmatch(message)
		require.NotNil(t, match)
		assert.Len(t, match[1], 10)
	})

	t.Run("claims are rendered with procedures", func(t *testing.T) {
		assert.Contains(t, message, "<ans:numeroLote>L20250810-AB12CD34</ans:numeroLote>")
		assert.Contains(t, message, "<ans:numeroGuiaPrestador>G-0001</ans:numeroGuiaPrestador>")
		assert.Contains(t, message, "<ans:numeroGuiaPrestador>G-0002</ans:numeroGuiaPrestador>")
		assert.Contains(t, message, "<ans:codigoProcedimento>10101012</ans:codigoProcedimento>")
		assert.Contains(t, message, "<ans:quantidadeExecutada>2.00</ans:quantidadeExecutada>")
		assert.Contains(t, message, "<ans:valorUnitario>25.50</ans:valorUnitario>")
		assert.Contains(t, message, "<ans:valorTotalGeral>201.00</ans:valorTotalGeral>")
		assert.Contains(t, message, "<ans:codigoCNES>1234567</ans:codigoCNES>")
	})

	t.Run("epilogue carries the md5 of the body", func(t *testing.T) {
		epilogueIdx := strings.Index(message, "<ans:epilogo>")
		require.GreaterOrEqual(t, epilogueIdx, 0)

		body := message[:epilogueIdx]
		expected := fmt.Sprintf("%x", md5.Sum([]byte(body)))

		match := regexp.MustCompile(`<ans:hash>([0-9a-f]{32})</ans:hash>`).FindStringSubmatch(message)
		require.NotNil(t, match)
		assert.Equal(t, expected, match[1])
	})

	t.Run("message closes the TISS envelope", func(t *testing.T) {
		assert.True(t, strings.HasPrefix(message, `<?xml version="1.0" encoding="UTF-8"?>`))
		assert.True(t, strings.HasSuffix(message, "</ans:mensagemTISS>"))
	})
}

func TestBatchComposer_ComposeClaimBatch_Errors(t *testing.T) {
	composer := NewBatchComposer("", testLogger())

	t.Run("batch without claims", func(t *testing.T) {
		_, err := composer.ComposeClaimBatch(testBatch(nil), testProvider(), testOperator())
		assert.True(t, models.IsKind(err, models.ErrorKindValidation))
	})

	t.Run("missing operator", func(t *testing.T) {
		_, err := composer.ComposeClaimBatch(testBatch([]models.Claim{testClaim("G-1")}), testProvider(), nil)
		assert.True(t, models.IsKind(err, models.ErrorKindValidation))
	})
}

func TestBatchComposer_EscapesReservedCharacters(t *testing.T) {
	composer := NewBatchComposer("4.01.00", testLogger())

	claim := testClaim("G-<script>&\"")
	claim.Items[0].Description = "Consulta & exame <urgente>"
	batch := testBatch([]models.Claim{claim})

	message, err := composer.ComposeClaimBatch(batch, testProvider(), testOperator())
	require.NoError(t, err)

	assert.Contains(t, message, "G-&lt;script&gt;&amp;&quot;")
	assert.Contains(t, message, "Consulta &amp; exame &lt;urgente&gt;")
	assert.NotContains(t, message, "<script>")
}

func TestBatchComposer_ComposeAppeal(t *testing.T) {
	composer := NewBatchComposer("4.01.00", testLogger())

	protocol := "PROTO-2025-000123"
	claim := testClaim("G-0099")
	batch := testBatch([]models.Claim{claim})
	batch.ProtocolNumber = &protocol

	appeal := &models.Appeal{
		ID:            uuid.New(),
		ClaimID:       claim.ID,
		Justification: "Procedimento autorizado previamente",
		Items: []models.AppealItem{
			{
				ItemSequence:    2,
				ProcedureCode:   "40302040",
				ContestedAmount: 51.00,
				Justification:   "Guia de autorização anexa",
			},
		},
	}

	message, err := composer.ComposeAppeal(appeal, &claim, batch, testProvider(), testOperator())
	require.NoError(t, err)

	assert.Contains(t, message, "<ans:tipoTransacao>RECURSO_GLOSA</ans:tipoTransacao>")
	assert.Contains(t, message, "<ans:numeroGuiaPrestador>G-0099</ans:numeroGuiaPrestador>")
	assert.Contains(t, message, "<ans:numeroProtocolo>PROTO-2025-000123</ans:numeroProtocolo>")
	assert.Contains(t, message, "<ans:justificativaRecurso>Procedimento autorizado previamente</ans:justificativaRecurso>")
	assert.Contains(t, message, "<ans:valorRecursado>51.00</ans:valorRecursado>")
	assert.Contains(t, message, "<ans:recursoGlosa>")

	t.Run("appeal without items is rejected", func(t *testing.T) {
		empty := &models.Appeal{ID: uuid.New()}
		_, err := composer.ComposeAppeal(empty, &claim, batch, testProvider(), testOperator())
		assert.True(t, models.IsKind(err, models.ErrorKindValidation))
	})
}
