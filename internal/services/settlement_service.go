package services

import (
	"encoding/xml"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/moov-io/iso20022/pkg/common"
	"github.com/moov-io/iso20022/pkg/pacs_v08"

	"github.com/vandehoeken/portal/internal/ledger"
	"github.com/vandehoeken/portal/internal/models"
)

const treasuryBIC = "VANDEHOE"

// SettlementService is the government console's ledger surface: treasury
// funding, the full transaction register and ISO 20022 settlement export
// for the central bank interchange.
type SettlementService struct {
	ledger    *ledger.Service
	validator *validator.Validate
}

// AdjustRequest represents a treasury funding payload
// @Description Treasury adjustment request structure
type AdjustRequest struct {
	ToVNTID     string `json:"to_vnt_id" validate:"required" example:"VNT-1735689600123-X7K2M9QRT"` // Account to credit
	Amount      int64  `json:"amount" validate:"required,gt=0" example:"500"`                       // Amount in whole VHS
	Description string `json:"description" example:"Founding grant"`                                // Reason
}

func NewSettlementService(ledgerService *ledger.Service) *SettlementService {
	return &SettlementService{
		ledger:    ledgerService,
		validator: validator.New(),
	}
}

// ListAllTransactions returns the full transaction register
// @Summary List all transactions
// @Description List every ledger transaction, newest first (admin only)
// @Tags admin
// @Produce json
// @Param limit query int false "Maximum rows" default(100)
// @Success 200 {array} models.Transaction "Transactions"
// @Failure 500 {string} string "Internal server error"
// @Router /admin/transactions [get]
func (s *SettlementService) ListAllTransactions(w http.ResponseWriter, r *http.Request) {
	limit := 100
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 1000 {
			limit = n
		}
	}

	txns, err := s.ledger.Log().ListAll(r.Context(), limit)
	if err != nil {
		log.Printf("[ADMIN] Register listing failed: %v", err)
		SendLedgerError(w, "transaction register", err)
		return
	}

	WriteJSON(w, http.StatusOK, txns)
}

// Adjust credits an account from the treasury
// @Summary Treasury adjustment
// @Description Credit a citizen's account from the treasury (admin only)
// @Tags admin
// @Accept json
// @Produce json
// @Param request body AdjustRequest true "Adjustment"
// @Success 200 {object} map[string]any "Adjustment completed"
// @Failure 400 {string} string "Invalid request"
// @Failure 404 {string} string "Account not found"
// @Router /admin/adjust [post]
func (s *SettlementService) Adjust(w http.ResponseWriter, r *http.Request) {
	var req AdjustRequest
	if !decodeAndValidate(w, r, s.validator, &req) {
		return
	}

	txn, err := s.ledger.AdminAdjust(r.Context(), req.ToVNTID, req.Amount, req.Description)
	if err != nil {
		log.Printf("[ADMIN] Adjustment failed for %s: %v", req.ToVNTID, err)
		SendLedgerError(w, "treasury adjustment", err)
		return
	}

	WriteJSON(w, http.StatusOK, map[string]any{
		"message":     "Adjustment completed",
		"transaction": txn,
	})
}

// ExportSettlement converts a ledger transaction to a pacs.008 message
// @Summary Export settlement message
// @Description Convert a ledger transaction to ISO 20022 pacs.008 XML (admin only)
// @Tags admin
// @Produce json
// @Param transactionID path string true "Transaction id"
// @Success 200 {object} object{status=string,messageType=string,xml=string} "Settlement message"
// @Failure 404 {string} string "Transaction not found"
// @Failure 500 {string} string "Internal server error"
// @Router /admin/settlement/{transactionID} [get]
func (s *SettlementService) ExportSettlement(w http.ResponseWriter, r *http.Request) {
	transactionID := chi.URLParam(r, "transactionID")

	txn, err := s.ledger.Log().Find(r.Context(), transactionID)
	if err != nil {
		SendLedgerError(w, "settlement export", err)
		return
	}

	doc, err := s.createPacs008(txn)
	if err != nil {
		log.Printf("[ADMIN] pacs.008 build failed for %s: %v", transactionID, err)
		SendErrorResponse(w, "Failed to build settlement message", http.StatusInternalServerError, nil)
		return
	}

	xmlData, err := xml.MarshalIndent(doc, "", "  ")
	if err != nil {
		log.Printf("[ADMIN] pacs.008 marshal failed for %s: %v", transactionID, err)
		SendErrorResponse(w, "Failed to build settlement message", http.StatusInternalServerError, nil)
		return
	}

	WriteJSON(w, http.StatusOK, map[string]any{
		"status":      "converted",
		"messageType": "pacs.008.001.08",
		"xml":         xml.Header + string(xmlData),
	})
}

// createPacs008 builds a pacs.008 FIToFICustomerCreditTransfer for one
// ledger transaction. The treasury acts as both agents; party names carry
// the citizen emails.
func (s *SettlementService) createPacs008(txn *models.Transaction) (*pacs_v08.FIToFICustomerCreditTransferV08, error) {
	msgID := uuid.New().String()
	now := time.Now()
	amount := float64(txn.Amount)

	debtor := txn.FromEmail
	if debtor == "" {
		debtor = s.ledger.Config().TreasuryEmail
	}

	memberID := treasuryBIC
	if txn.ToVNTID != nil {
		memberID = *txn.ToVNTID
	}

	instrID := common.Max35Text(txn.TransactionID)
	bic := common.BICFIDec2014Identifier(treasuryBIC)
	debtorName := common.Max140Text(debtor)
	creditorName := common.Max140Text(txn.ToEmail)

	doc := &pacs_v08.FIToFICustomerCreditTransferV08{
		GrpHdr: pacs_v08.GroupHeader93{
			MsgId:   common.Max35Text(msgID),
			CreDtTm: common.ISODateTime(now),
			NbOfTxs: "1",
			TtlIntrBkSttlmAmt: &pacs_v08.ActiveCurrencyAndAmount{
				Ccy:   common.ActiveCurrencyCode("VHS"),
				Value: amount,
			},
			IntrBkSttlmDt: (*common.ISODate)(&now),
			SttlmInf: pacs_v08.SettlementInstruction7{
				SttlmMtd: "CLRG",
			},
		},
		CdtTrfTxInf: []pacs_v08.CreditTransferTransaction39{
			{
				PmtId: pacs_v08.PaymentIdentification7{
					InstrId:    &instrID,
					EndToEndId: common.Max35Text(txn.TransactionID),
					TxId:       &instrID,
				},
				IntrBkSttlmAmt: pacs_v08.ActiveCurrencyAndAmount{
					Ccy:   common.ActiveCurrencyCode("VHS"),
					Value: amount,
				},
				IntrBkSttlmDt: (*common.ISODate)(&now),
				ChrgBr:        "SLEV",
				DbtrAgt: pacs_v08.BranchAndFinancialInstitutionIdentification6{
					FinInstnId: pacs_v08.FinancialInstitutionIdentification18{
						BICFI: &bic,
					},
				},
				Dbtr: pacs_v08.PartyIdentification135{
					Nm: &debtorName,
				},
				CdtrAgt: pacs_v08.BranchAndFinancialInstitutionIdentification6{
					FinInstnId: pacs_v08.FinancialInstitutionIdentification18{
						ClrSysMmbId: &pacs_v08.ClearingSystemMemberIdentification2{
							MmbId: common.Max35Text(memberID),
						},
					},
				},
				Cdtr: pacs_v08.PartyIdentification135{
					Nm: &creditorName,
				},
			},
		},
	}

	return doc, nil
}
