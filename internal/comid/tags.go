/*
 * Copyright (c) 2025 SECOM CO., LTD. All Rights reserved.
 *
 * SPDX-License-Identifier: BSD-2-Clause
 */

package comid

// CBOR tag numbers from the CoRIM registry. These are a compatibility
// contract with other implementations and are never renumbered.
const (
	TagOID  = 111
	TagUUID = 37

	TagConciseMidTag = 506

	TagUEID   = 550
	TagSVN    = 552
	TagMinSVN = 553

	TagPKIXBase64Key      = 554
	TagPKIXBase64Cert     = 555
	TagPKIXBase64CertPath = 556
	TagThumbprint         = 557
	TagCOSEKey            = 558
	TagCertThumbprint     = 559
	TagBytes              = 560
	TagCertPathThumbprint = 561
)
